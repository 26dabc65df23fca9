package stream

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeClient is an in-memory stream engine with the delivery semantics the
// consumer relies on: per-group cursors, append-assigned record ids, and
// explicit acknowledgment tracking.
type fakeClient struct {
	mu      sync.Mutex
	streams map[string][]Record
	cursors map[string]int
	acked   map[string][]string
	nextSeq int

	appendErr error
	groupErr  error
	readErr   error
	ackErr    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		streams: make(map[string][]Record),
		cursors: make(map[string]int),
		acked:   make(map[string][]string),
	}
}

func groupKey(stream, group string) string {
	return stream + "/" + group
}

func (f *fakeClient) Append(ctx context.Context, stream string, fields map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.appendErr != nil {
		return "", f.appendErr
	}

	f.nextSeq++
	id := fmt.Sprintf("%d-0", f.nextSeq)

	flat := make(map[string]string, len(fields))
	for k, v := range fields {
		flat[k] = fmt.Sprintf("%v", v)
	}

	f.streams[stream] = append(f.streams[stream], Record{ID: id, Fields: flat})
	return id, nil
}

func (f *fakeClient) EnsureGroup(ctx context.Context, stream, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.groupErr != nil {
		return f.groupErr
	}

	key := groupKey(stream, group)
	if _, exists := f.cursors[key]; !exists {
		f.cursors[key] = 0
	}
	return nil
}

func (f *fakeClient) ReadGroup(ctx context.Context, args ReadArgs) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readErr != nil {
		return nil, f.readErr
	}

	key := groupKey(args.Stream, args.Group)
	cursor, exists := f.cursors[key]
	if !exists {
		return nil, fmt.Errorf("NOGROUP no such consumer group %q", args.Group)
	}

	records := f.streams[args.Stream]
	if cursor >= len(records) {
		return nil, nil
	}

	end := cursor + int(args.Count)
	if args.Count <= 0 || end > len(records) {
		end = len(records)
	}

	batch := make([]Record, end-cursor)
	copy(batch, records[cursor:end])
	f.cursors[key] = end
	return batch, nil
}

func (f *fakeClient) Ack(ctx context.Context, stream, group string, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ackErr != nil {
		return f.ackErr
	}

	key := groupKey(stream, group)
	f.acked[key] = append(f.acked[key], ids...)
	return nil
}

func (f *fakeClient) setAppendErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendErr = err
}

func (f *fakeClient) setGroupErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupErr = err
}

func (f *fakeClient) appended(stream string) []Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Record, len(f.streams[stream]))
	copy(out, f.streams[stream])
	return out
}

func (f *fakeClient) ackedIDs(stream, group string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := groupKey(stream, group)
	out := make([]string, len(f.acked[key]))
	copy(out, f.acked[key])
	return out
}

// waitFor polls until cond holds or the deadline expires.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
