package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/velora-wms/pickflow/internal/middleware"
	"github.com/velora-wms/pickflow/internal/models"
	"github.com/velora-wms/pickflow/internal/picking"
)

// lockStatus reports whether one order line is claimed by another batch.
// An optional batch_id marks the inquiring batch, whose own lock does not
// count as a conflict.
func (r *Router) lockStatus(w http.ResponseWriter, req *http.Request) {
	orderNo := req.URL.Query().Get("order_no")
	itemCode := req.URL.Query().Get("item_code")
	if orderNo == "" || itemCode == "" {
		respondError(w, http.StatusBadRequest, "order_no and item_code are required")
		return
	}

	var currentBatchID *uint
	if raw := req.URL.Query().Get("batch_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid batch_id")
			return
		}
		u := uint(id)
		currentBatchID = &u
	}

	status, err := picking.StatusOf(r.db.DB, orderNo, itemCode, currentBatchID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// A lock held by a completed batch shows as locked but no longer blocks
	// other picking paths
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       status,
		"active_claim": picking.IsClaimedByActiveBatch(r.db.DB, orderNo, itemCode),
	})
}

// lockedLines lists an order's lines held by active batches, for the
// non-batch picking screens that must refuse them
func (r *Router) lockedLines(w http.ResponseWriter, req *http.Request) {
	orderNo := mux.Vars(req)["orderNo"]

	lines, err := picking.LockedLinesForOrder(r.db.DB, orderNo)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"order_no":     orderNo,
		"locked_lines": lines,
	})
}

// refreshLocks re-claims a batch's criteria, picking up lines that became
// claimable after the batch was created (admin resets, released conflicts)
func (r *Router) refreshLocks(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var batch models.Batch
	if err := r.db.First(&batch, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Batch not found")
		return
	}
	if batch.Status != models.BatchStatusCreated {
		respondError(w, http.StatusConflict, "Locks can only be refreshed before picking starts")
		return
	}

	criteria := picking.CriteriaForBatch(&batch)
	claimed, err := picking.ReplaceClaims(r.db.DB, id, criteria)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Locks refreshed",
		"locked_lines": claimed,
	})
}

// resetLine is the admin override returning a line to the claimable pool
func (r *Router) resetLine(w http.ResponseWriter, req *http.Request) {
	var body struct {
		OrderNo  string `json:"order_no"`
		ItemCode string `json:"item_code"`
		Note     string `json:"note"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.OrderNo == "" || body.ItemCode == "" {
		respondError(w, http.StatusBadRequest, "order_no and item_code are required")
		return
	}

	admin := middleware.UsernameFromContext(req.Context())
	if err := r.engine.ResetLine(body.OrderNo, body.ItemCode, admin, body.Note); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Line reset"})
}
