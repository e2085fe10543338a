package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/neighborhelper/internal/core/domain"
	"github.com/samirrijal/neighborhelper/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	postType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Post",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"username":   &graphql.Field{Type: graphql.String},
			"avatar_url": &graphql.Field{Type: graphql.String},
			"timestamp":  &graphql.Field{Type: graphql.String},
			"content":    &graphql.Field{Type: graphql.String},
			"image_url":  &graphql.Field{Type: graphql.String},
			"likes":      &graphql.Field{Type: graphql.Int},
			"comments":   &graphql.Field{Type: graphql.Int},
			"accepted":   &graphql.Field{Type: graphql.Boolean},
			"address":    &graphql.Field{Type: graphql.String},
			"location":   &graphql.Field{Type: geoPointType},
		},
	})

	markerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Marker",
		Fields: graphql.Fields{
			"label":   &graphql.Field{Type: graphql.String},
			"snippet": &graphql.Field{Type: graphql.String},
			"point":   &graphql.Field{Type: geoPointType},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TrackingSession",
		Fields: graphql.Fields{
			"id":                 &graphql.Field{Type: graphql.String},
			"requester":          &graphql.Field{Type: graphql.String},
			"requester_location": &graphql.Field{Type: geoPointType},
			"phase":              &graphql.Field{Type: graphql.String},
			"permission":         &graphql.Field{Type: graphql.String},
			"user_location":      &graphql.Field{Type: geoPointType},
			"distance_km":        &graphql.Field{Type: graphql.Float},
			"distance_text":      &graphql.Field{Type: graphql.String},
			"subtitle":           &graphql.Field{Type: graphql.String},
			"indicator":          &graphql.Field{Type: graphql.String},
			"stale":              &graphql.Field{Type: graphql.Boolean},
			"unavailable":        &graphql.Field{Type: graphql.Boolean},
			"markers":            &graphql.Field{Type: graphql.NewList(markerType)},
		},
	})

	idArgs := graphql.FieldConfigArgument{
		"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"posts": &graphql.Field{
				Type:        graphql.NewList(postType),
				Description: "The help-request feed",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Feed.List(p.Context)
				},
			},
			"post": &graphql.Field{
				Type:        postType,
				Description: "Get a post by ID",
				Args:        idArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Feed.Get(p.Context, p.Args["id"].(string))
				},
			},
			"sessions": &graphql.Field{
				Type:        graphql.NewList(sessionType),
				Description: "Open tracking sessions",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var out []map[string]interface{}
					for _, s := range deps.Sessions.List() {
						out = append(out, sessionResult(s))
					}
					return out, nil
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Get a tracking session by ID",
				Args:        idArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					s, err := deps.Sessions.Get(p.Args["id"].(string))
					if err != nil {
						return nil, err
					}
					return sessionResult(s), nil
				},
			},
			"distance": &graphql.Field{
				Type:        graphql.Float,
				Description: "Great-circle distance in kilometers",
				Args: graphql.FieldConfigArgument{
					"from_lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"from_lon": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"to_lat":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"to_lon":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return usecases.DistanceKm(
						domain.GeoPoint{Lat: p.Args["from_lat"].(float64), Lon: p.Args["from_lon"].(float64)},
						domain.GeoPoint{Lat: p.Args["to_lat"].(float64), Lon: p.Args["to_lon"].(float64)},
					)
				},
			},
		},
	})

	postMutation := func(desc string, fn func(p graphql.ResolveParams, id string) (*domain.Post, error)) *graphql.Field {
		return &graphql.Field{
			Type:        postType,
			Description: desc,
			Args:        idArgs,
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				return fn(p, p.Args["id"].(string))
			},
		}
	}

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"acceptPost": postMutation("Accept a help request", func(p graphql.ResolveParams, id string) (*domain.Post, error) {
				return deps.Feed.Accept(p.Context, id)
			}),
			"likePost": postMutation("Like a post", func(p graphql.ResolveParams, id string) (*domain.Post, error) {
				return deps.Feed.Like(p.Context, id)
			}),
			"commentPost": postMutation("Count a comment on a post", func(p graphql.ResolveParams, id string) (*domain.Post, error) {
				return deps.Feed.Comment(p.Context, id)
			}),
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// sessionResult flattens a session snapshot for the TrackingSession type.
func sessionResult(s *usecases.Session) map[string]interface{} {
	st := s.Controller.State()
	m := map[string]interface{}{
		"id":                 s.ID,
		"requester":          s.Target.Label,
		"requester_location": s.Target.Point,
		"phase":              st.Phase.String(),
		"permission":         st.Permission.String(),
		"distance_text":      st.DistanceText(),
		"subtitle":           st.Subtitle(),
		"indicator":          st.Indicator(),
		"stale":              st.Stale,
		"unavailable":        st.Unavailable,
		"markers":            s.Surface.Markers(),
	}
	if st.LastUserPosition != nil {
		m["user_location"] = *st.LastUserPosition
	}
	if st.DistanceKm != nil {
		m["distance_km"] = *st.DistanceKm
	}
	return m
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
