package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/skyviewcafe/atlas/internal/model"
	"github.com/skyviewcafe/atlas/internal/service"
)

const (
	defaultQuery   = "Nashua, NH"
	defaultVersion = 9
)

var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]*$`)

// Handler handles HTTP requests
type Handler struct {
	service service.ServiceInterface
}

// NewHandler creates a new handler instance
func NewHandler(service service.ServiceInterface) *Handler {
	return &Handler{service: service}
}

// Search handles GET /atlas/
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		query = defaultQuery
	}

	version := defaultVersion
	if v := q.Get("version"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			version = n
		}
	}

	limit := service.DefaultLimit
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > service.MaxLimit {
		limit = service.MaxLimit
	}

	req := service.SearchRequest{
		Query:      query,
		Version:    version,
		RemoteMode: service.ParseRemoteMode(q.Get("remote")),
		Limit:      limit,
		Client:     q.Get("client"),
		NoTrace:    flagParam(q, "notrace"),
	}

	result := h.service.Search(r.Context(), req)

	callback := q.Get("callback")
	switch {
	case flagParam(q, "pt"):
		writePlainText(w, result)
	case callback != "":
		writeJSONP(w, callback, result)
	default:
		writeJSON(w, result)
	}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// flagParam treats a bare or truthy query parameter as set.
func flagParam(q url.Values, name string) bool {
	if _, present := q[name]; !present {
		return false
	}
	switch strings.ToLower(q.Get(name)) {
	case "0", "false", "n", "no":
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, result *model.SearchResult) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSONP(w http.ResponseWriter, callback string, result *model.SearchResult) {
	if !callbackPattern.MatchString(callback) {
		http.Error(w, "invalid callback parameter", http.StatusBadRequest)
		return
	}
	body, err := json.Marshal(result)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	fmt.Fprintf(w, "/**/%s(%s);", callback, body)
}

func writePlainText(w http.ResponseWriter, result *model.SearchResult) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "search: %s\n", result.NormalizedSearch)
	fmt.Fprintf(w, "matches: %d\n", result.Count)
	if result.LimitReached {
		fmt.Fprintln(w, "limit reached")
	}
	for i := range result.Matches {
		m := &result.Matches[i]
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%s\t%d\n",
			m.DisplayName, m.Latitude, m.Longitude, m.Zone, m.Rank)
	}
	if result.Error != "" {
		fmt.Fprintf(w, "error: %s\n", result.Error)
	}
	if result.Warning != "" {
		fmt.Fprintf(w, "warning: %s\n", result.Warning)
	}
	if result.Info != "" {
		fmt.Fprintf(w, "info: %s\n", result.Info)
	}
}
