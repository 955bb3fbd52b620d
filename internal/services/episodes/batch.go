package episodes

import "github.com/soundhaven/feedsync/internal/models"

// Batch accumulates the persistence operations produced by one merge pass.
// Nothing in a batch is visible to the rest of the system until CommitBatch
// returns successfully.
type Batch struct {
	Inserts []*models.Episode
	Updates []*models.Episode
	Show    *models.Show // committed with FailCount reset and new watermark
}

// NewBatch creates an empty batch for the given show.
func NewBatch(show *models.Show) *Batch {
	return &Batch{Show: show}
}

// AddInsert queues a new episode row.
func (b *Batch) AddInsert(ep *models.Episode) {
	b.Inserts = append(b.Inserts, ep)
}

// AddUpdate queues a metadata update of an existing row.
func (b *Batch) AddUpdate(ep *models.Episode) {
	b.Updates = append(b.Updates, ep)
}

// Empty reports whether the batch carries no episode operations.
func (b *Batch) Empty() bool {
	return len(b.Inserts) == 0 && len(b.Updates) == 0
}
