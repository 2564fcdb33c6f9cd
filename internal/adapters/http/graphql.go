package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to our services. It is
// a read surface: mutations go through the REST session endpoints
// where the state machine rules live.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	routeResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RouteResult",
		Fields: graphql.Fields{
			"path":               &graphql.Field{Type: graphql.NewList(geoPointType)},
			"distance_km":        &graphql.Field{Type: graphql.Float},
			"direct_distance_km": &graphql.Field{Type: graphql.Float},
			"point_count":        &graphql.Field{Type: graphql.Int},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"kind":         &graphql.Field{Type: graphql.String},
			"closure_id":   &graphql.Field{Type: graphql.String},
			"mode":         &graphql.Field{Type: graphql.String},
			"state":        &graphql.Field{Type: graphql.String},
			"points":       &graphql.Field{Type: graphql.NewList(geoPointType)},
			"route":        &graphql.Field{Type: routeResultType},
			"is_selecting": &graphql.Field{Type: graphql.Boolean},
			"is_routing":   &graphql.Field{Type: graphql.Boolean},
			"route_error":  &graphql.Field{Type: graphql.String},
		},
	})

	effectiveType := graphql.NewObject(graphql.ObjectConfig{
		Name: "EffectiveGeometry",
		Fields: graphql.Fields{
			"mode":        &graphql.Field{Type: graphql.String},
			"coordinates": &graphql.Field{Type: graphql.NewList(geoPointType)},
			"routed":      &graphql.Field{Type: graphql.Boolean},
			"distance_km": &graphql.Field{Type: graphql.Float},
		},
	})

	submissionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Submission",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"closure_id":   &graphql.Field{Type: graphql.String},
			"kind":         &graphql.Field{Type: graphql.String},
			"mode":         &graphql.Field{Type: graphql.String},
			"point_count":  &graphql.Field{Type: graphql.Int},
			"routed":       &graphql.Field{Type: graphql.Boolean},
			"succeeded":    &graphql.Field{Type: graphql.Boolean},
			"error":        &graphql.Field{Type: graphql.String},
			"submitted_at": &graphql.Field{Type: graphql.DateTime},
		},
	})

	closureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Closure",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"description":      &graphql.Field{Type: graphql.String},
			"closure_type":     &graphql.Field{Type: graphql.String},
			"status":           &graphql.Field{Type: graphql.String},
			"openlr_code":      &graphql.Field{Type: graphql.String},
			"source":           &graphql.Field{Type: graphql.String},
			"confidence_level": &graphql.Field{Type: graphql.Int},
			"geometry":         &graphql.Field{Type: effectiveType},
			"start_time":       &graphql.Field{Type: graphql.DateTime},
			"end_time":         &graphql.Field{Type: graphql.DateTime},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "The live capture session, if any",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					snap, err := deps.Selection.Snapshot()
					if err != nil {
						return nil, nil
					}
					return snap, nil
				},
			},
			"effectiveGeometry": &graphql.Field{
				Type:        effectiveType,
				Description: "The geometry submission would use right now",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					eff, ok := deps.Selection.Effective()
					if !ok {
						return nil, nil
					}
					return eff, nil
				},
			},
			"submissions": &graphql.Field{
				Type:        graphql.NewList(submissionType),
				Description: "Journaled submission attempts, newest first",
				Args: graphql.FieldConfigArgument{
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					offset := p.Args["offset"].(int)
					limit := p.Args["limit"].(int)
					records, _, err := deps.Submission.History(p.Context, offset, limit)
					return records, err
				},
			},
			"closure": &graphql.Field{
				Type:        closureType,
				Description: "A closure record from the backend",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Backend.Get(p.Context, id)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
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
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
