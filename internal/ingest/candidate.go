package ingest

import (
	"github.com/karlokarate/nxcatalog/internal/keycodec"
	"github.com/karlokarate/nxcatalog/internal/normalize"
)

// Candidate is one item that survived the pipeline's filters and is ready
// for a consumer to commit into the entity store.
type Candidate struct {
	Raw        normalize.RawRecord
	Normalized normalize.NormalizedRecord
	SourceKey  string
	AccountKey string
	SourceType keycodec.SourceType
}
