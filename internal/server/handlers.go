package server

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/findly-app/findly/pkg/currency"
	"github.com/findly-app/findly/pkg/match"
	"github.com/findly-app/findly/pkg/rank"
	"github.com/findly-app/findly/pkg/recommend"
	"github.com/findly-app/findly/pkg/search"
	"github.com/findly-app/findly/pkg/storage"
	"github.com/findly-app/findly/pkg/style"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const maxUploadBytes = 10 << 20

// SearchRequest is the body of POST /api/search and the first websocket
// message. Exactly one of ImageURL and ImageBase64 is expected.
type SearchRequest struct {
	ImageURL    string `json:"image_url,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Sort        string `json:"sort,omitempty"`
	MinTrust    *int   `json:"min_trust,omitempty"`
	Currency    string `json:"currency,omitempty"`
}

type SearchResponse struct {
	ImageURL  string            `json:"image_url"`
	HistoryID string            `json:"history_id,omitempty"`
	Matches   []match.LensMatch `json:"matches"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	mergeQuery(&req, r.URL.Query())

	opts, err := s.rankOptions(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.runSearch(r.Context(), req)
	if err != nil {
		if errors.Is(err, errBadSearchRequest) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Warnf("Search failed: %v", err)
		writeError(w, http.StatusBadGateway, "no results")
		return
	}

	resp := SearchResponse{
		ImageURL: res.ImageURL,
		Matches:  rank.Rank(r.Context(), res.Wait(), opts, s.converter()),
	}
	if res.HistoryItem != nil {
		resp.HistoryID = res.HistoryItem.ID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

var errBadSearchRequest = errors.New("need image_url or image_base64")

func (s *Server) runSearch(ctx context.Context, req SearchRequest) (*search.Result, error) {
	if s.cfg.Pipeline == nil {
		return nil, errors.New("search is not configured")
	}
	switch {
	case req.ImageURL != "":
		return s.cfg.Pipeline.RunURL(ctx, req.ImageURL)
	case req.ImageBase64 != "":
		data, err := base64.StdEncoding.DecodeString(stripDataURL(req.ImageBase64))
		if err != nil {
			return nil, errBadSearchRequest
		}
		return s.cfg.Pipeline.Run(ctx, data)
	}
	return nil, errBadSearchRequest
}

// stripDataURL removes a "data:image/...;base64," prefix.
func stripDataURL(s string) string {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

func mergeQuery(req *SearchRequest, q url.Values) {
	if v := q.Get("sort"); v != "" {
		req.Sort = v
	}
	if v := q.Get("currency"); v != "" {
		req.Currency = v
	}
	if v := q.Get("min_trust"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			req.MinTrust = &n
		}
	}
}

func (s *Server) rankOptions(req SearchRequest) (rank.Options, error) {
	mode, err := rank.ParseSortMode(req.Sort)
	if err != nil {
		return rank.Options{}, err
	}
	code := currency.NormalizeCode(req.Currency)
	if code == "" {
		code = s.cfg.Currency
	}
	return rank.Options{Sort: mode, MinTrust: req.MinTrust, Currency: code}, nil
}

func (s *Server) converter() rank.LabelConverter {
	if s.cfg.Converter == nil {
		return nil
	}
	return s.cfg.Converter
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := s.cfg.DB.SearchHistory(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleRemoveHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid history id")
		return
	}
	var n int64
	err = s.write(func() (err error) {
		n, err = s.cfg.DB.RemoveHistory(r.Context(), id)
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "history item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	var n int64
	err := s.write(func() (err error) {
		n, err = s.cfg.DB.ClearHistory(r.Context())
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": n})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	items, err := s.cfg.DB.ListHistory(r.Context(), 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, style.Build(items))
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	items, err := s.cfg.DB.ListHistory(r.Context(), 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.cfg.Recommender == nil {
		writeError(w, http.StatusServiceUnavailable, "recommendations are not configured")
		return
	}
	code := currency.NormalizeCode(r.URL.Query().Get("currency"))
	if code == "" {
		code = s.cfg.Currency
	}
	products := s.cfg.Recommender.Recommend(r.Context(), items)
	writeJSON(w, http.StatusOK, recommend.WithDisplayPrices(r.Context(), products, s.converter(), code))
}

type convertResponse struct {
	Price     string  `json:"price"`
	Amount    float64 `json:"amount"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Converted float64 `json:"converted"`
	Display   string  `json:"display"`
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	label := q.Get("price")
	to := currency.NormalizeCode(q.Get("to"))
	if to == "" {
		to = s.cfg.Currency
	}

	p, ok := currency.Parse(label)
	if !ok {
		writeError(w, http.StatusBadRequest, "unparseable price")
		return
	}
	if s.cfg.Converter == nil {
		writeError(w, http.StatusServiceUnavailable, "conversion is not configured")
		return
	}
	v, err := s.cfg.Converter.Convert(r.Context(), p.Amount, p.Code, to)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, convertResponse{
		Price:     label,
		Amount:    p.Amount,
		From:      p.Code,
		To:        to,
		Converted: v,
		Display:   currency.FormatAmount(v, to),
	})
}

type preferencesResponse struct {
	Theme storage.Theme `json:"theme"`
	User  *storage.User `json:"user,omitempty"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	theme, err := s.cfg.DB.Theme(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	user, err := s.cfg.DB.User(r.Context())
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, preferencesResponse{Theme: theme, User: user})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	theme, err := storage.ParseTheme(req.Theme)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.write(func() error { return s.cfg.DB.SetTheme(r.Context(), theme) }); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]storage.Theme{"theme": theme})
}

func (s *Server) handleSetUser(w http.ResponseWriter, r *http.Request) {
	var u storage.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Keep the existing ID so edits do not create a new user.
	if u.ID == "" {
		if cur, err := s.cfg.DB.User(r.Context()); err == nil {
			u.ID = cur.ID
		}
	}
	var saved *storage.User
	err := s.write(func() (err error) {
		saved, err = s.cfg.DB.SetUser(r.Context(), u)
		return err
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.write(func() error { return s.cfg.DB.DeleteUser(r.Context()) }); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
