package session

import (
	"github.com/roach88/contextsync/internal/relay"
	"github.com/roach88/contextsync/internal/replica"
)

// RelayFactory builds relay providers configured with opts.
func RelayFactory(opts ...relay.Option) ProviderFactory {
	return func(docID string, doc *replica.Doc, h Handlers) (Provider, error) {
		p, err := relay.New(docID, doc, relay.Handlers{OnSync: h.OnSync, OnClose: h.OnClose}, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
