package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/mnohosten/laura-feed/pkg/document"
	"github.com/mnohosten/laura-feed/pkg/feed"
)

// Resolver resolves the GraphQL schema's fields against a change-feed
// container. It once also resolved a full set of document CRUD query and
// mutation fields against a *database.Database; those fields had no
// subscriber in this module's own surface and have been removed along with
// them.
type Resolver struct {
	container *feed.Container
}

// NewResolver creates a new Resolver instance. container may be nil, in
// which case watchCollection always fails with an error instead of
// silently returning an empty channel.
func NewResolver(container *feed.Container) *Resolver {
	return &Resolver{container: container}
}

// WatchCollection resolves the watchCollection subscription by registering
// a change-stream subscription against the resolver's feed container and
// relaying each delivered message's full document onto the channel the
// GraphQL subscription executor ranges over.
func (r *Resolver) WatchCollection(p graphql.ResolveParams) (interface{}, error) {
	if r.container == nil {
		return nil, fmt.Errorf("change streams are not enabled on this server")
	}

	collectionName, ok := p.Args["collection"].(string)
	if !ok {
		return nil, fmt.Errorf("collection name is required")
	}

	var filter feed.Filter
	if filterArg, ok := p.Args["filter"]; ok && filterArg != nil {
		f, ok := filterArg.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid filter format")
		}
		filter = f
	}

	changes := make(chan *document.Document, 16)

	ctx := p.Context
	listener := func(msg feed.Message) {
		body, err := msg.Body()
		if err != nil || body == nil {
			return
		}
		asMap, ok := body.(map[string]interface{})
		if !ok {
			return
		}
		doc := document.NewDocumentFromMap(asMap)
		if ctx != nil {
			select {
			case changes <- doc:
			case <-ctx.Done():
			}
			return
		}
		changes <- doc
	}

	opts := feed.NewChangeStreamOptions(collectionName).Filter(filter).Build()
	sub, err := r.container.Register(opts, listener, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to watch collection: %w", err)
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			r.container.Remove(sub)
			close(changes)
		}()
	}

	return changes, nil
}
