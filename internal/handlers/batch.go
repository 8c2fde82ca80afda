package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/velora-wms/pickflow/internal/middleware"
	"github.com/velora-wms/pickflow/internal/models"
	"github.com/velora-wms/pickflow/internal/picking"
	"github.com/velora-wms/pickflow/internal/services/printer"
)

// batchID extracts and parses the {id} route variable
func batchID(req *http.Request) (uint, error) {
	raw := mux.Vars(req)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid batch id %q", raw)
	}
	return uint(id), nil
}

// batchRequest is the payload for batch creation and editing
type batchRequest struct {
	Name      string   `json:"name"`
	Zones     []string `json:"zones"`
	Corridors []string `json:"corridors"`
	UnitTypes []string `json:"unit_types"`
	Orders    []string `json:"orders"`
	Mode      string   `json:"mode"`
}

func (b batchRequest) criteria() picking.Criteria {
	return picking.Criteria{
		Zones:     b.Zones,
		Corridors: b.Corridors,
		UnitTypes: b.UnitTypes,
		Orders:    b.Orders,
	}
}

// listBatches returns batches, optionally filtered by status
func (r *Router) listBatches(w http.ResponseWriter, req *http.Request) {
	q := r.db.Model(&models.Batch{}).Order("created_at DESC")
	if status := req.URL.Query().Get("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var batches []models.Batch
	if err := q.Preload("Orders").Find(&batches).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, batches)
}

// getBatch returns one batch with its memberships and claim count
func (r *Router) getBatch(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var batch models.Batch
	if err := r.db.Preload("Orders.Order").First(&batch, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "Batch not found")
		return
	}

	locked, err := picking.LockedCount(r.db.DB, id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"batch":        batch,
		"locked_lines": locked,
	})
}

// createBatch creates a batch and claims its lines
func (r *Router) createBatch(w http.ResponseWriter, req *http.Request) {
	var body batchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result, err := r.engine.CreateBatch(picking.CreateBatchRequest{
		Name:      body.Name,
		Criteria:  body.criteria(),
		Mode:      models.PickingMode(body.Mode),
		CreatedBy: middleware.UsernameFromContext(req.Context()),
	})
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// editBatch replaces a batch's criteria, re-claiming under the new set
func (r *Router) editBatch(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body batchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	var mode *models.PickingMode
	if body.Mode != "" {
		m := models.PickingMode(body.Mode)
		mode = &m
	}

	claimed, err := r.engine.EditBatch(id, body.criteria(), mode)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Batch updated",
		"locked_lines": claimed,
	})
}

// deleteBatch deletes a batch that has no recorded picks
func (r *Router) deleteBatch(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	released, err := r.engine.DeleteBatch(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Batch deleted",
		"released_lines": released,
	})
}

// assignPicker sets or clears the batch's assigned picker
func (r *Router) assignPicker(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := r.engine.AssignPicker(id, body.Username); err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Picker updated"})
}

// checkConflicts previews which lines of a criteria set are contested
func (r *Router) checkConflicts(w http.ResponseWriter, req *http.Request) {
	var body batchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	criteria := body.criteria()
	report, err := picking.CheckConflicts(r.db.DB, criteria)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	available, err := picking.AvailableCount(r.db.DB, criteria)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"conflicts": report,
		"available": available,
	})
}

// startSession freezes the sequence and moves the batch into picking
func (r *Router) startSession(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	length, generation, err := r.engine.StartSession(id, middleware.UsernameFromContext(req.Context()))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_items": length,
		"generation":  generation,
	})
}

// currentItem returns the picker's position in the frozen sequence
func (r *Router) currentItem(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, index, total, generation, err := r.engine.CurrentItem(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item":        item,
		"item_index":  index,
		"total_items": total,
		"generation":  generation,
	})
}

// pickProgressRequest is the payload for confirm and skip
type pickProgressRequest struct {
	ItemIndex  int    `json:"item_index"`
	Generation int    `json:"generation"`
	PickedQty  int    `json:"picked_qty"`
	Reason     string `json:"reason"`
}

// confirmPick records the current item as picked
func (r *Router) confirmPick(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body pickProgressRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.PickedQty < 0 {
		respondError(w, http.StatusBadRequest, "picked_qty cannot be negative")
		return
	}

	result, err := r.engine.ConfirmPick(id, middleware.UsernameFromContext(req.Context()),
		body.ItemIndex, body.Generation, body.PickedQty, body.Reason)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// skipCurrent defers the current item to the end of the session
func (r *Router) skipCurrent(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body pickProgressRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.Reason == "" {
		respondError(w, http.StatusBadRequest, "Skip reason is required")
		return
	}

	result, err := r.engine.SkipCurrent(id, middleware.UsernameFromContext(req.Context()),
		body.ItemIndex, body.Generation, body.Reason)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// forceComplete resolves all outstanding lines as exceptions
func (r *Router) forceComplete(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := r.engine.ForceComplete(id, middleware.UsernameFromContext(req.Context()))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// batchSummary reconciles the batch's ledger against its orders
func (r *Router) batchSummary(w http.ResponseWriter, req *http.Request) {
	id, err := batchID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := r.engine.Summary(id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// pickListPDF renders the batch's sequence as a printable pick list. Uses
// the frozen snapshot when a session exists, otherwise a preview of the
// sequence the next session would freeze.
func (r *Router) pickListPDF(w http.ResponseWriter, req *http.Request) {
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

	items, _, err := picking.LoadSnapshot(r.db.DB, id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if len(items) == 0 {
		items, err = r.engine.PreviewSequence(id)
		if err != nil {
			respondEngineError(w, err)
			return
		}
	}

	pdfBytes, err := printer.GeneratePickListPDF(printer.PickList{
		Batch:     &batch,
		Items:     items,
		PrintedBy: middleware.UsernameFromContext(req.Context()),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", batch.BatchNumber))
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}
