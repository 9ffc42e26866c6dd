package handlers

import (
	"net/http"

	"github.com/kozaktomas/visagevault/internal/app"
	"github.com/kozaktomas/visagevault/internal/cluster"
	"github.com/rs/zerolog"
)

// ClustersHandler drives the cluster review session produced by the last
// clustering job.
type ClustersHandler struct {
	app *app.App
	log zerolog.Logger
}

// NewClustersHandler creates a new clusters handler.
func NewClustersHandler(a *app.App, log zerolog.Logger) *ClustersHandler {
	return &ClustersHandler{app: a, log: log}
}

type reviewResponse struct {
	Position int              `json:"position"`
	Total    int              `json:"total"`
	Current  *app.ClusterInfo `json:"current,omitempty"`
	Summary  cluster.Summary  `json:"summary"`
}

func (h *ClustersHandler) review(w http.ResponseWriter) *cluster.Review {
	review := h.app.Review()
	if review == nil {
		respondError(w, http.StatusNotFound, "no clustering results; start a cluster scan first")
	}
	return review
}

func toReviewResponse(review *cluster.Review) reviewResponse {
	pos, total := review.Position()
	resp := reviewResponse{Position: pos, Total: total, Summary: review.Summary()}
	if c, ok := review.Current(); ok {
		info := app.NewClusterInfo(c)
		resp.Current = &info
	}
	return resp
}

// Get returns the cluster awaiting a decision and the session summary.
func (h *ClustersHandler) Get(w http.ResponseWriter, r *http.Request) {
	if review := h.review(w); review != nil {
		respondJSON(w, http.StatusOK, toReviewResponse(review))
	}
}

type resolveRequest struct {
	Outcome    cluster.Outcome `json:"outcome"`
	IdentityID int64           `json:"identity_id"`
	Name       string          `json:"name"`
}

// Resolve applies accept (with identity_id or name), skip or reject to the
// current cluster and returns the next one.
func (h *ClustersHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	review := h.review(w)
	if review == nil {
		return
	}
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := cluster.ParseOutcome(string(req.Outcome))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch outcome {
	case cluster.OutcomeAccepted:
		switch {
		case req.IdentityID > 0:
			err = review.Accept(r.Context(), req.IdentityID)
		case req.Name != "":
			_, err = review.AcceptNew(r.Context(), req.Name)
		default:
			respondError(w, http.StatusBadRequest, "identity_id or name is required to accept")
			return
		}
	case cluster.OutcomeSkipped:
		err = review.Skip()
	case cluster.OutcomeRejected:
		err = review.Reject(r.Context())
	}
	if err != nil {
		respondErr(w, err)
		return
	}
	h.log.Info().Str("outcome", string(outcome)).Msg("cluster resolved")
	respondJSON(w, http.StatusOK, toReviewResponse(review))
}

// Cancel abandons the remaining clusters; resolved ones stay committed.
func (h *ClustersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	review := h.review(w)
	if review == nil {
		return
	}
	review.Cancel()
	respondJSON(w, http.StatusOK, review.Summary())
}
