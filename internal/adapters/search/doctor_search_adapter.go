package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/hospital-appointments/internal/domain/entities"
	"github.com/zatekoja/hospital-appointments/internal/domain/repositories"
	tsclient "github.com/zatekoja/hospital-appointments/internal/infrastructure/clients/typesense"
)

const defaultPerPage = 20

// TypesenseAdapter implements doctor search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements DoctorSearchRepository
var _ repositories.DoctorSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// Index indexes a doctor
func (a *TypesenseAdapter) Index(ctx context.Context, doctor *entities.Doctor, hospitalIDs []string) error {
	_, err := a.client.Client().Collection(tsclient.DoctorsCollection).Documents().Upsert(ctx, buildDoctorDocument(doctor, hospitalIDs))
	if err != nil {
		return fmt.Errorf("failed to index doctor: %w", err)
	}
	return nil
}

// Delete removes a doctor from index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.DoctorsCollection).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete doctor from index: %w", err)
	}
	return nil
}

// Search returns the ids of doctors matching the filter, best match first
func (a *TypesenseAdapter) Search(ctx context.Context, filter repositories.DoctorFilter) ([]string, error) {
	result, err := a.client.Client().Collection(tsclient.DoctorsCollection).Documents().Search(ctx, buildSearchParams(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to search doctors: %w", err)
	}

	ids := []string{}
	if result.Hits == nil {
		return ids, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if id, ok := (*hit.Document)["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func buildDoctorDocument(doctor *entities.Doctor, hospitalIDs []string) map[string]interface{} {
	if hospitalIDs == nil {
		hospitalIDs = []string{}
	}
	return map[string]interface{}{
		"id":           doctor.ID,
		"name":         doctor.Name,
		"title":        doctor.Title,
		"bio":          doctor.Bio,
		"category_id":  doctor.CategoryID,
		"hospital_ids": hospitalIDs,
		"avg_rating":   doctor.AvgRating,
		"review_count": doctor.ReviewCount,
		"created_at":   doctor.CreatedAt.Unix(),
	}
}

func buildSearchParams(filter repositories.DoctorFilter) *api.SearchCollectionParams {
	q := strings.TrimSpace(filter.Query)
	if q == "" {
		q = "*"
	}
	perPage := filter.Limit
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	params := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("name,title,bio"),
		SortBy:  pointer.String("_text_match:desc,avg_rating:desc"),
		Page:    pointer.Int(filter.Offset/perPage + 1),
		PerPage: pointer.Int(perPage),
	}
	if f := buildFilterBy(filter); f != "" {
		params.FilterBy = pointer.String(f)
	}
	return params
}

func buildFilterBy(filter repositories.DoctorFilter) string {
	var clauses []string
	if filter.CategoryID != "" {
		clauses = append(clauses, fmt.Sprintf("category_id:=%s", escapeFilterValue(filter.CategoryID)))
	}
	if filter.HospitalID != "" {
		clauses = append(clauses, fmt.Sprintf("hospital_ids:=[%s]", escapeFilterValue(filter.HospitalID)))
	}
	return strings.Join(clauses, " && ")
}

func escapeFilterValue(v string) string {
	return "`" + strings.ReplaceAll(v, "`", "") + "`"
}
