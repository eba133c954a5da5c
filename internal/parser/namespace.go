package parser

import (
	"feedcore/internal/domain"

	"github.com/mmcdole/gofeed"
)

// namespaceMetadata walks a gofeed item's namespace extension map (Dublin
// Core, content, syndication, slash, trackback, iTunes, geo, ...) and
// contributes one metadata pair per extension value, so none of a feed's
// namespaced fields are silently dropped on the way into the item store.
func namespaceMetadata(it *gofeed.Item) []domain.MetadataPair {
	var out []domain.MetadataPair
	for namespace, elems := range it.Extensions {
		for name, instances := range elems {
			for _, e := range instances {
				if e.Value == "" {
					continue
				}
				out = append(out, domain.MetadataPair{
					Key:   namespace + ":" + name,
					Value: e.Value,
				})
			}
		}
	}
	return out
}
