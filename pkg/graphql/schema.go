package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/mnohosten/laura-feed/pkg/feed"
)

// Schema creates and returns the GraphQL schema backing the watchCollection
// subscription. container may be nil, in which case the subscription
// resolver always fails instead of silently returning no events.
func Schema(container *feed.Container) (graphql.Schema, error) {
	// Define the Document type
	documentType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Document",
		Description: "A document in a watched collection",
		Fields: graphql.Fields{
			"_id": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.String),
				Description: "Unique document identifier",
			},
			"data": &graphql.Field{
				Type:        graphql.NewNonNull(JSONScalar),
				Description: "Document data as JSON",
			},
		},
	})

	// Create resolver instance
	resolver := NewResolver(container)

	// graphql-go requires a Query root even when a schema's only real use
	// is its Subscription; this one exists solely to satisfy that.
	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Query",
		Description: "Root query type",
		Fields: graphql.Fields{
			"ping": &graphql.Field{
				Type:        graphql.NewNonNull(graphql.Boolean),
				Description: "Liveness probe for GraphQL clients",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return true, nil
				},
			},
		},
	})

	// Define the Subscription type
	subscriptionType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Subscription",
		Description: "Root subscription type",
		Fields: graphql.Fields{
			"watchCollection": &graphql.Field{
				Type:        documentType,
				Description: "Watch for changes in a collection",
				Args: graphql.FieldConfigArgument{
					"collection": &graphql.ArgumentConfig{
						Type:        graphql.NewNonNull(graphql.String),
						Description: "Collection name to watch",
					},
					"filter": &graphql.ArgumentConfig{
						Type:        JSONScalar,
						Description: "Optional filter for changes",
					},
				},
				Resolve: resolver.WatchCollection,
			},
		},
	})

	// Create the schema
	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:        queryType,
		Subscription: subscriptionType,
	})

	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create GraphQL schema: %w", err)
	}

	return schema, nil
}
