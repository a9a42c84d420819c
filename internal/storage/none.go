package storage

import "context"

// PassthroughStore keeps nothing. The source URL doubles as the
// identifier and clients are pointed straight at upstream, which works
// until the upstream link expires.
type PassthroughStore struct{}

func NewPassthroughStore() *PassthroughStore {
	return &PassthroughStore{}
}

func (s *PassthroughStore) Store(ctx context.Context, mediaURL string) (string, bool, error) {
	return mediaURL, false, nil
}

func (s *PassthroughStore) Retrieve(ctx context.Context, identifier string) (*Delivery, error) {
	return &Delivery{Kind: DeliverRedirect, Location: identifier}, nil
}
