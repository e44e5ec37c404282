package accessor

import (
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bd-pipeline/bd-loader/pkg/icons"
	"github.com/bd-pipeline/bd-loader/pkg/logging"
	"github.com/bd-pipeline/bd-loader/pkg/models"
	"github.com/bd-pipeline/bd-loader/pkg/runner"
)

// Executor runs one GraphQL operation. *graphql.Client implements it.
type Executor interface {
	Execute(ctx context.Context, query string, variables map[string]any, out any) error
}

const (
	queryProjects = `query GetProjects($titles: [String!]!) {
  projects(where: {title: {_nin: $titles}, active: {_eq: true}}) {
    id
    title
    thumbnail
  }
}`

	queryAssetTypes = `query GetAssetTypes($project_id: Int!) {
  assets(distinct_on: type, where: {projects_id: {_eq: $project_id}, type: {_neq: "CAM"}}) {
    type
  }
}`

	queryAssetCategories = `query GetAssetCategories($project_id: Int!, $type: String!) {
  assets(distinct_on: category, where: {projects_id: {_eq: $project_id}, type: {_eq: $type}, category: {_neq: ""}}) {
    category
  }
}`

	queryAssetLevels = `query GetAssetLevels($project_id: Int!, $type: String!) {
  assets(distinct_on: level, where: {projects_id: {_eq: $project_id}, type: {_eq: $type}, level: {_neq: ""}}) {
    level
  }
}`

	queryAssetsByRegex = `query GetAssetsByRegex($project_id: Int!, $regex: String!) {
  assets(where: {projects_id: {_eq: $project_id}, type: {_neq: ""}, name: {_iregex: $regex}}, order_by: {name: asc}) {
    id
    type
    name
    level
    category
  }
}`

	queryAssetDetails = `query GetAssetDetails($id: Int!) {
  assets_by_pk(id: $id) {
    thumbnail
    component {
      created_at
      revisions(order_by: {created_at: desc}, limit: 1) {
        created_at
        version
      }
    }
  }
}`

	queryAssetIcon = `query GetAssetIcon($id: Int!) {
  assets_by_pk(id: $id) {
    icon
  }
}`
)

// Types whose assets have no category, and levels likewise.
const (
	uncategorizedType  = "CHR"
	uncategorizedLevel = "ENV"
)

// GraphQLAccessor reads the catalog from the asset-management service.
type GraphQLAccessor struct {
	scope
	client Executor
}

// NewGraphQLAccessor creates an accessor backed by client.
func NewGraphQLAccessor(client Executor, r *runner.Runner) *GraphQLAccessor {
	a := &GraphQLAccessor{client: client}
	a.runner = r
	a.log = logging.Named("accessor.graphql")
	return a
}

type assetRow struct {
	ID       models.AssetID `json:"id"`
	Type     string         `json:"type"`
	Name     string         `json:"name"`
	Level    string         `json:"level"`
	Category string         `json:"category"`
}

func (r assetRow) info() *models.AssetInfo {
	return &models.AssetInfo{ID: r.ID, Type: r.Type, Name: r.Name, Level: r.Level, Category: r.Category}
}

func toInfos(rows []assetRow) []*models.AssetInfo {
	out := make([]*models.AssetInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.info())
	}
	return out
}

// GetProjects lists active projects whose title is not excluded. It blocks.
func (a *GraphQLAccessor) GetProjects(ctx context.Context, excludedTitles []string) ([]*models.Project, error) {
	if excludedTitles == nil {
		excludedTitles = []string{}
	}
	var out struct {
		Projects []struct {
			ID        int    `json:"id"`
			Title     string `json:"title"`
			Thumbnail string `json:"thumbnail"`
		} `json:"projects"`
	}
	if err := a.client.Execute(ctx, queryProjects, map[string]any{"titles": excludedTitles}, &out); err != nil {
		return nil, fmt.Errorf("get projects: %w", err)
	}

	projects := make([]*models.Project, 0, len(out.Projects))
	for _, p := range out.Projects {
		thumb, err := icons.DecodeBase64(p.Thumbnail)
		if err != nil {
			a.log.Error("unable to decode project thumbnail", zap.String("project", p.Title), zap.Error(err))
		}
		projects = append(projects, &models.Project{ID: p.ID, Title: p.Title, Thumbnail: thumb})
	}
	return projects, nil
}

// distinct runs one of the distinct_on queries and collects field.
func (a *GraphQLAccessor) distinct(ctx context.Context, query, field string, vars map[string]any) ([]string, error) {
	var out struct {
		Assets []map[string]*string `json:"assets"`
	}
	if err := a.client.Execute(ctx, query, vars, &out); err != nil {
		return nil, err
	}
	values := make([]string, 0, len(out.Assets))
	for _, row := range out.Assets {
		if v := row[field]; v != nil && *v != "" {
			values = append(values, *v)
		}
	}
	return values, nil
}

func (a *GraphQLAccessor) RequestAssetTypes(cb func([]string)) {
	request(&a.scope, "GetAssetTypes", func(ctx context.Context, p *models.Project) ([]string, error) {
		return a.distinct(ctx, queryAssetTypes, "type", map[string]any{"project_id": p.ID})
	}, cb)
}

// HasCategories reports whether assets of assetType on level are grouped in
// categories. Characters and environment levels are not.
func HasCategories(assetType, level string) bool {
	return assetType != uncategorizedType && level != uncategorizedLevel
}

// RequestAssetCategories lists the categories of assetType. cb is never
// invoked when HasCategories is false.
func (a *GraphQLAccessor) RequestAssetCategories(assetType, level string, cb func([]string)) {
	if !HasCategories(assetType, level) {
		return
	}
	request(&a.scope, "GetAssetCategories", func(ctx context.Context, p *models.Project) ([]string, error) {
		return a.distinct(ctx, queryAssetCategories, "category", map[string]any{"project_id": p.ID, "type": assetType})
	}, cb)
}

// RequestAssetLevels lists the levels of assetType.
func (a *GraphQLAccessor) RequestAssetLevels(assetType string, cb func([]string)) {
	request(&a.scope, "GetAssetLevels", func(ctx context.Context, p *models.Project) ([]string, error) {
		return a.distinct(ctx, queryAssetLevels, "level", map[string]any{"project_id": p.ID, "type": assetType})
	}, cb)
}

// assetsQuery builds GetAssets with the optional level and category filters.
func assetsQuery(project *models.Project, q models.AssetQuery) (string, map[string]any) {
	args := []string{"$project_id: Int!", "$type: String!"}
	conds := []string{"projects_id: {_eq: $project_id}", "type: {_eq: $type}"}
	vars := map[string]any{"project_id": project.ID, "type": q.Type}

	if q.Level != "" {
		args = append(args, "$level: String")
		conds = append(conds, "level: {_eq: $level}")
		vars["level"] = q.Level
	}
	if q.Category != "" {
		args = append(args, "$category: String")
		conds = append(conds, "category: {_eq: $category}")
		vars["category"] = q.Category
	}

	query := fmt.Sprintf(`query GetAssets(%s) {
  assets(where: {%s}, order_by: {name: asc}) {
    id
    type
    name
    level
    category
  }
}`, strings.Join(args, ", "), strings.Join(conds, ", "))
	return query, vars
}

func (a *GraphQLAccessor) RequestAssets(query models.AssetQuery, cb func([]*models.AssetInfo)) {
	request(&a.scope, "GetAssets", func(ctx context.Context, p *models.Project) ([]*models.AssetInfo, error) {
		q, vars := assetsQuery(p, query)
		var out struct {
			Assets []assetRow `json:"assets"`
		}
		if err := a.client.Execute(ctx, q, vars, &out); err != nil {
			return nil, err
		}
		return toInfos(out.Assets), nil
	}, cb)
}

func (a *GraphQLAccessor) RequestAssetsByRegex(pattern string, cb func([]*models.AssetInfo)) {
	request(&a.scope, "GetAssetsByRegex", func(ctx context.Context, p *models.Project) ([]*models.AssetInfo, error) {
		var out struct {
			Assets []assetRow `json:"assets"`
		}
		vars := map[string]any{"project_id": p.ID, "regex": pattern}
		if err := a.client.Execute(ctx, queryAssetsByRegex, vars, &out); err != nil {
			return nil, err
		}
		return toInfos(out.Assets), nil
	}, cb)
}

// timestamp accepts the timestamptz and timestamp renderings of the service.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07:00"}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", s)
}

func (a *GraphQLAccessor) RequestAssetDetails(asset *models.AssetInfo, cb func(*models.AssetDetails)) {
	request(&a.scope, "GetAssetDetails", func(ctx context.Context, p *models.Project) (*models.AssetDetails, error) {
		id, err := asset.ID.Int()
		if err != nil {
			return nil, err
		}
		var out struct {
			Asset *struct {
				Thumbnail string `json:"thumbnail"`
				Component struct {
					CreatedAt timestamp `json:"created_at"`
					Revisions []struct {
						CreatedAt timestamp `json:"created_at"`
						Version   int       `json:"version"`
					} `json:"revisions"`
				} `json:"component"`
			} `json:"assets_by_pk"`
		}
		if err := a.client.Execute(ctx, queryAssetDetails, map[string]any{"id": id}, &out); err != nil {
			return nil, err
		}
		if out.Asset == nil {
			return nil, nil
		}

		details := &models.AssetDetails{
			FullName:  asset.FullName(),
			CreatedAt: out.Asset.Component.CreatedAt.Time,
		}
		if revs := out.Asset.Component.Revisions; len(revs) > 0 {
			details.Version = revs[0].Version
			details.ModifiedAt = revs[0].CreatedAt.Time
		}
		details.Thumbnail, err = icons.DecodeBase64(out.Asset.Thumbnail)
		if err != nil {
			a.log.Error("unable to decode thumbnail", zap.Stringer("asset", asset), zap.Error(err))
		}
		return details, nil
	}, cb)
}

func (a *GraphQLAccessor) LoadAssetIcon(ctx context.Context, asset *models.AssetInfo) (image.Image, error) {
	id, err := asset.ID.Int()
	if err != nil {
		return nil, err
	}
	var out struct {
		Asset *struct {
			Icon *string `json:"icon"`
		} `json:"assets_by_pk"`
	}
	if err := a.client.Execute(ctx, queryAssetIcon, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Asset == nil || out.Asset.Icon == nil {
		return nil, nil
	}
	return icons.DecodeBase64(*out.Asset.Icon)
}
