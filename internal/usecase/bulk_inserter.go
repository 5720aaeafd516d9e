package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"CandleSync/internal/domain/models"
	drepo "CandleSync/internal/domain/repository"

	"golang.org/x/sync/errgroup"
)

// InsertChunkSize caps the number of records per unordered write.
const InsertChunkSize = 10000

// BulkInserter commits accumulated records to the store.
type BulkInserter struct {
	writer drepo.BulkWriter
	async  bool
	target string
}

// NewBulkInserter builds an inserter. With async set, records are written as
// concurrent unordered chunks; otherwise as one ordered write. target names
// the destination in error messages.
func NewBulkInserter(writer drepo.BulkWriter, async bool, target string) *BulkInserter {
	return &BulkInserter{writer: writer, async: async, target: target}
}

// Insert writes records. Chunks already committed are not rolled back when
// another chunk fails.
func (b *BulkInserter) Insert(ctx context.Context, records []models.StorageRecord) error {
	if len(records) == 0 {
		return nil
	}
	var err error
	if b.async {
		err = b.insertChunks(ctx, records)
	} else {
		err = b.write(ctx, records, true)
	}
	if err != nil {
		return &SyncError{Kind: ErrInsert, Size: len(records), Target: b.target, Err: err}
	}
	return nil
}

func (b *BulkInserter) insertChunks(ctx context.Context, records []models.StorageRecord) error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	for _, chunk := range Chunk(records, InsertChunkSize) {
		g.Go(func() error {
			if err := b.write(ctx, chunk, false); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (b *BulkInserter) write(ctx context.Context, records []models.StorageRecord, ordered bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("store panic: %v", r)
		}
	}()
	return b.writer.BulkWrite(ctx, records, ordered)
}

// Chunk splits records into consecutive slices of at most size elements.
func Chunk(records []models.StorageRecord, size int) [][]models.StorageRecord {
	if size <= 0 || len(records) == 0 {
		return nil
	}
	out := make([][]models.StorageRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		out = append(out, records[start:end])
	}
	return out
}
