package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"rankd/internal/adapters/observability"
	"rankd/internal/app"
	"rankd/internal/domain"
)

type Handlers struct {
	Importer  *app.Importer
	Rankings  *app.RankingService
	Companies *app.CompanyService
	Snapshots *app.SnapshotService
	Renderer  domain.Renderer
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/companies", h.listCompanies)
	s.mux.Get("/v1/companies/{placeId}", h.getCompany)
	s.mux.Put("/v1/companies/{placeId}", h.updateCompany)

	s.mux.Get("/v1/settings/our-company", h.getOurCompany)
	s.mux.Put("/v1/settings/our-company", h.setOurCompany)

	s.mux.Post("/v1/reviews/import", h.importReviews)

	s.mux.Get("/v1/comparisons", h.getComparisons)
	s.mux.Get("/v1/comparisons/snapshots", h.listSnapshots)
	s.mux.Post("/v1/comparisons/snapshots", h.createSnapshot)
	s.mux.Get("/v1/comparisons/snapshots/{id}", h.getSnapshot)

	s.mux.Get("/v1/groups", h.listGroups)
	s.mux.Post("/v1/groups", h.createGroup)
	s.mux.Get("/v1/groups/{id}", h.getGroup)
	s.mux.Put("/v1/groups/{id}", h.updateGroup)
	s.mux.Delete("/v1/groups/{id}", h.deleteGroup)

	s.mux.Post("/v1/export", h.export)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeErr maps the domain error taxonomy onto HTTP statuses.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, domain.ErrDataIntegrity):
		log.Error().Err(err).Msg("data integrity violation")
		writeProblem(w, http.StatusInternalServerError, "Data Integrity Violation", err.Error())
	default:
		log.Error().Err(err).Msg("internal error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// ---- views ----

type companyView struct {
	PlaceID      string    `json:"placeId"`
	Name         string    `json:"name"`
	URL          *string   `json:"url"`
	IsOurCompany bool      `json:"isOurCompany"`
	Services     []string  `json:"services"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toCompanyView(c domain.Company) companyView {
	services := c.Services
	if services == nil {
		services = []string{}
	}
	return companyView{
		PlaceID:      c.PlaceID,
		Name:         c.Name,
		URL:          c.URL,
		IsOurCompany: c.IsOurCompany,
		Services:     services,
		CreatedAt:    c.CreatedAt,
	}
}

type metadataView struct {
	TotalReviews   int        `json:"totalReviews"`
	ScrapedReviews int        `json:"scrapedReviews"`
	CalculatedAvg  *float64   `json:"calculatedAvg"`
	LastScraped    *time.Time `json:"lastScraped"`
}

type groupView struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CompanyIDs []string  `json:"companyIds"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toGroupView(g domain.CompanyGroup) groupView {
	ids := g.CompanyIDs
	if ids == nil {
		ids = []string{}
	}
	return groupView{ID: g.ID, Name: g.Name, CompanyIDs: ids, CreatedAt: g.CreatedAt}
}

// ---- companies ----

func (h *Handlers) listCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := h.Companies.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]companyView, 0, len(companies))
	for _, c := range companies {
		out = append(out, toCompanyView(c))
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getCompany(w http.ResponseWriter, r *http.Request) {
	detail, err := h.Companies.Get(r.Context(), chi.URLParam(r, "placeId"))
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := struct {
		Company  companyView   `json:"company"`
		Metadata *metadataView `json:"metadata"`
	}{Company: toCompanyView(detail.Company)}
	if md := detail.Metadata; md != nil {
		ls := md.LastScraped
		resp.Metadata = &metadataView{
			TotalReviews:   md.TotalReviews,
			ScrapedReviews: md.ScrapedReviews,
			CalculatedAvg:  md.CalculatedAvg,
			LastScraped:    &ls,
		}
	}
	writeCacheable(w, r, resp)
}

func (h *Handlers) updateCompany(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name     *string   `json:"name"`
		URL      *string   `json:"url"`
		Services *[]string `json:"services"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	c, err := h.Companies.Update(r.Context(), chi.URLParam(r, "placeId"), domain.CompanyPatch{
		Name: body.Name, URL: body.URL, Services: body.Services,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCompanyView(c))
}

// ---- our-company setting ----

func (h *Handlers) getOurCompany(w http.ResponseWriter, r *http.Request) {
	c, err := h.Companies.OurCompany(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := struct {
		PlaceID *string `json:"placeId"`
	}{}
	if c != nil {
		resp.PlaceID = &c.PlaceID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) setOurCompany(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PlaceID string `json:"placeId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.Companies.SetOurCompany(r.Context(), body.PlaceID); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{true})
}

// ---- import ----

func (h *Handlers) importReviews(w http.ResponseWriter, r *http.Request) {
	var batch domain.ImportBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed import payload")
		return
	}
	summary, err := h.Importer.Import(r.Context(), batch)
	if err != nil {
		writeErr(w, err)
		return
	}
	observability.ObserveImport(summary.Imported, summary.Skipped)
	writeJSON(w, http.StatusOK, struct {
		Company         string `json:"company"`
		ReviewsImported int    `json:"reviewsImported"`
		ReviewsSkipped  int    `json:"reviewsSkipped"`
	}{batch.Business.PlaceID, summary.Imported, summary.Skipped})
}

// ---- comparisons ----

func parseFilter(r *http.Request) (domain.RankingFilter, error) {
	if g := r.URL.Query().Get("group"); g != "" {
		id, err := strconv.ParseInt(g, 10, 64)
		if err != nil {
			return domain.RankingFilter{}, errors.New("group must be a number")
		}
		return domain.RankingFilter{GroupID: &id}, nil
	}
	return domain.RankingFilter{Service: r.URL.Query().Get("filter")}, nil
}

func (h *Handlers) getComparisons(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
		return
	}
	start := time.Now()
	result, err := h.Rankings.Rank(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	observability.ObserveRanking(result.Filter, time.Since(start))
	writeCacheable(w, r, result)
}

// ---- snapshots ----

func (h *Handlers) listSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Snapshots.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if snaps == nil {
		snaps = []domain.SnapshotInfo{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (h *Handlers) createSnapshot(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string `json:"name"`
		Filter  string `json:"filter"`
		GroupID *int64 `json:"groupId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	result, err := h.Rankings.Rank(r.Context(), domain.RankingFilter{Service: body.Filter, GroupID: body.GroupID})
	if err != nil {
		writeErr(w, err)
		return
	}
	id, err := h.Snapshots.Archive(r.Context(), body.Name, result)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
	}{id})
}

func (h *Handlers) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Snapshots.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID        string          `json:"id"`
		Name      string          `json:"name"`
		Rankings  json.RawMessage `json:"rankings"`
		CreatedAt time.Time       `json:"createdAt"`
	}{snap.ID, snap.Name, snap.Rankings, snap.CreatedAt})
}

// ---- groups ----

func groupID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handlers) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Companies.ListGroups(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, toGroupView(g))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) createGroup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name       string   `json:"name"`
		CompanyIDs []string `json:"companyIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	g, err := h.Companies.CreateGroup(r.Context(), body.Name, body.CompanyIDs)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupView(g))
}

func (h *Handlers) getGroup(w http.ResponseWriter, r *http.Request) {
	id, err := groupID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	detail, err := h.Companies.GetGroup(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	type memberView struct {
		PlaceID  string   `json:"placeId"`
		Name     string   `json:"name"`
		Services []string `json:"services"`
	}
	members := make([]memberView, 0, len(detail.Members))
	for _, m := range detail.Members {
		services := m.Services
		if services == nil {
			services = []string{}
		}
		members = append(members, memberView{m.PlaceID, m.Name, services})
	}
	writeJSON(w, http.StatusOK, struct {
		groupView
		Companies []memberView `json:"companies"`
	}{toGroupView(detail.Group), members})
}

func (h *Handlers) updateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := groupID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	var body struct {
		Name       *string   `json:"name"`
		CompanyIDs *[]string `json:"companyIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	g, err := h.Companies.UpdateGroup(r.Context(), id, domain.GroupPatch{Name: body.Name, CompanyIDs: body.CompanyIDs})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupView(g))
}

func (h *Handlers) deleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := groupID(r)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a number")
		return
	}
	if err := h.Companies.DeleteGroup(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{true})
}

// ---- export ----

var filterTitles = map[string]string{
	"":                     "All Companies",
	"all":                  "All Companies",
	"removals":             "Removals",
	"self-storage":         "Self-Storage",
	"mobile-storage":       "Mobile Storage",
	"removals-and-storage": "Removals + Storage",
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Filter     string `json:"filter"`
		GroupID    *int64 `json:"groupId"`
		SnapshotID string `json:"snapshotId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}

	var rankings []domain.CompanyRanking
	title := "Competitor Comparison"

	switch {
	case body.SnapshotID != "":
		name, rows, err := h.Snapshots.Rankings(r.Context(), body.SnapshotID)
		if err != nil {
			writeErr(w, err)
			return
		}
		rankings = rows
		title = name
	case body.GroupID != nil:
		detail, err := h.Companies.GetGroup(r.Context(), *body.GroupID)
		if err != nil {
			writeErr(w, err)
			return
		}
		result, err := h.Rankings.Rank(r.Context(), domain.RankingFilter{GroupID: body.GroupID})
		if err != nil {
			writeErr(w, err)
			return
		}
		rankings = result.Rankings
		title = "Competitor Comparison - " + detail.Group.Name
	default:
		result, err := h.Rankings.Rank(r.Context(), domain.RankingFilter{Service: body.Filter})
		if err != nil {
			writeErr(w, err)
			return
		}
		rankings = result.Rankings
		if label, ok := filterTitles[body.Filter]; ok {
			title = "Competitor Comparison - " + label
		}
	}

	pdf, err := h.Renderer.Render(r.Context(), title, rankings)
	if err != nil {
		log.Error().Err(err).Msg("render failed")
		writeProblem(w, http.StatusBadGateway, "Export Failed", "document rendering failed")
		return
	}

	filename := "rankd-comparison-" + time.Now().Format("2006-01-02") + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := w.Write(pdf); err != nil {
		log.Error().Err(err).Msg("failed to write pdf body")
	}
}
