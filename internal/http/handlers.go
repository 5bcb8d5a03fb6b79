package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"worksched/internal/core"
	"worksched/internal/log"
	"worksched/internal/xlsx"
)

const maxUploadBytes = 20 << 20 // 20 MiB per request, workbook plus form fields

// propertyFromForm maps the upload form onto the job's property details.
// Every field is optional free text.
func propertyFromForm(r *http.Request) core.Property {
	get := func(name string) string { return sanitizeInput(r.FormValue(name)) }
	return core.Property{
		InspectedBy:  get("inspected_by"),
		AddressLine1: get("address_line1"),
		AddressLine2: get("address_line2"),
		Town:         get("town"),
		Postcode:     get("postcode"),
		Region:       get("region"),
		KeyLocation:  get("key_location"),
		KeySafeCode:  get("key_safe_code"),
		OrderNo:      get("order_no"),
		PropertyType: get("property_type"),
		TenureType:   get("tenure_type"),
		Condition:    get("condition"),
		UPRN:         get("uprn"),
		Fund:         get("fund"),
		ClientName:   get("client_name"),
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded",
			log.FieldPath, r.URL.Path,
			log.FieldComponent, log.ComponentTemplate,
			"error_type", log.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	jobs, err := s.jobs.ListJobs(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List jobs error", log.FieldError, err)
	}
	categories, err := s.reference.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories error", log.FieldError, err)
	}
	contractors, err := s.reference.ListContractors(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List contractors error", log.FieldError, err)
	}

	data := struct {
		Jobs        []core.Job
		Categories  []string
		Contractors []string
	}{
		Jobs:        jobs,
		Categories:  categories,
		Contractors: contractors,
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.ErrorContext(r.Context(), "Parse multipart form error", log.FieldError, err)
		BadRequestError("Could not read the upload").Write(w)
		return
	}

	file, header, err := r.FormFile("schedule")
	if err != nil {
		BadRequestError("Missing schedule file").Write(w)
		return
	}
	defer file.Close()

	property := propertyFromForm(r)

	result, err := s.uploads.ProcessUpload(r.Context(), file, property)
	if err != nil {
		var parseErr *xlsx.ParseError
		if errors.As(err, &parseErr) {
			slog.WarnContext(r.Context(), "Schedule rejected",
				"filename", header.Filename, log.FieldError, err)
			UnprocessableEntityError("The file is not a valid Schedule of Works workbook").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Upload failed",
			"filename", header.Filename, log.FieldError, err)
		InternalServerError("Upload failed, nothing was saved").Write(w)
		return
	}

	s.invalidateItems(result.Job.ID)
	s.invalidateOverview()

	body := `<div class="success">Schedule uploaded: job #` +
		strconv.FormatInt(result.Job.ID, 10) + `, ` +
		strconv.Itoa(result.ItemCount) + ` items`
	if result.ReviewCount > 0 {
		body += `, <strong>` + strconv.Itoa(result.ReviewCount) + ` flagged for review</strong>`
	}
	body += `</div>`

	NewHTMXResponse().
		TriggerJobUploaded(result.Job.ID).
		TriggerDashboardRefresh().
		TriggerFormReset().
		BodyHTML(body).
		Write(w)
}

func (s *Server) handleItemsPartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	jobID, err := strconv.ParseInt(r.URL.Query().Get("job"), 10, 64)
	if err != nil {
		BadRequestError("Missing or invalid job parameter").Write(w)
		return
	}

	job, err := s.jobs.GetJob(r.Context(), jobID)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError("No such job").Write(w)
		return
	} else if err != nil {
		slog.ErrorContext(r.Context(), "Get job error", log.FieldError, err, log.FieldJobID, jobID)
		_, _ = w.Write([]byte(`<div class="placeholder">Could not load schedule items</div>`))
		return
	}

	items, err := s.getItems(r.Context(), jobID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List line items error", log.FieldError, err, log.FieldJobID, jobID)
		_, _ = w.Write([]byte(`<div class="placeholder">Could not load schedule items</div>`))
		return
	}
	overview := core.OverviewOf(items)

	categories, err := s.reference.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories error", log.FieldError, err)
	}
	contractors, err := s.reference.ListContractors(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List contractors error", log.FieldError, err)
	}

	type row struct {
		ID           int64
		Code         string
		Description  string
		BaseRate     string
		ContractRate string
		Unit         string
		Qty          int64
		Total        string
		Location     string
		Category     string
		Assignee     string
		Status       string
		NeedsReview  bool
	}
	data := struct {
		JobID          int64
		OrderNo        string
		Address        string
		Postcode       string
		UPRN           string
		KeySafeCode    string
		Total          string
		Completed      string
		CountAll       int
		CountCompleted int
		ValuePercent   int
		Rows           []row
		Categories     []string
		Contractors    []string
		Statuses       []string
	}{
		JobID:          jobID,
		OrderNo:        job.OrderNo,
		Address:        job.AddressLine1,
		Postcode:       job.Postcode,
		UPRN:           job.UPRN,
		KeySafeCode:    job.KeySafeCode,
		Total:          core.FormatPounds(overview.TotalPence),
		Completed:      core.FormatPounds(overview.CompletedPence),
		CountAll:       overview.CountAll,
		CountCompleted: overview.CountCompleted,
		ValuePercent:   overview.ValuePercent(),
		Categories:     categories,
		Contractors:    contractors,
		Statuses: []string{
			string(core.StatusUnassigned), string(core.StatusAssigned),
			string(core.StatusStarted), string(core.StatusCompleted),
		},
	}
	for _, item := range items {
		data.Rows = append(data.Rows, row{
			ID:           item.ID,
			Code:         item.Code,
			Description:  item.Description,
			BaseRate:     item.BaseRate.FormatPounds(),
			ContractRate: item.ContractRate.FormatPounds(),
			Unit:         item.Unit,
			Qty:          item.Qty,
			Total:        item.Total.FormatPounds(),
			Location:     item.Location,
			Category:     item.Category,
			Assignee:     item.Assignee,
			Status:       string(item.Status),
			NeedsReview:  item.NeedsReview,
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<div class="placeholder">` + strconv.Itoa(len(items)) + ` items</div>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "items_table.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", log.FieldError, err, "template", "items_table.html")
		_, _ = w.Write([]byte(`<div class="placeholder">Could not render schedule items</div>`))
	}
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		BadRequestError("Invalid item id").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	var patch core.LineItemPatch
	if r.Form.Has("category") {
		v := sanitizeInput(r.Form.Get("category"))
		patch.Category = &v
	}
	if r.Form.Has("assignee") {
		v := sanitizeInput(r.Form.Get("assignee"))
		patch.Assignee = &v
	}
	if r.Form.Has("status") {
		st, err := core.ParseStatus(r.Form.Get("status"))
		if err != nil {
			UnprocessableEntityError("Unknown status").Write(w)
			return
		}
		patch.Status = &st
	}

	item, err := s.items.UpdateItem(r.Context(), itemID, patch)
	switch {
	case errors.Is(err, core.ErrEmptyPatch):
		UnprocessableEntityError("Nothing to update").Write(w)
		return
	case errors.Is(err, core.ErrInvalidStatus):
		UnprocessableEntityError("Unknown status").Write(w)
		return
	case errors.Is(err, core.ErrNotFound):
		NotFoundError("No such item").Write(w)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Update item error", log.FieldError, err, log.FieldItemID, itemID)
		InternalServerError("Update failed").Write(w)
		return
	}

	s.invalidateItems(item.JobID)
	s.invalidateOverview()

	NewHTMXResponse().
		TriggerItemUpdated(item.JobID, item.ID).
		TriggerDashboardRefresh().
		BodyHTML(`<div class="success">Item updated: ` +
			template.HTMLEscapeString(item.Description) +
			` (` + template.HTMLEscapeString(string(item.Status)) + `)</div>`).
		Write(w)
}

func (s *Server) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	itemID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		BadRequestError("Invalid item id").Write(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		BadRequestError("Could not read the upload").Write(w)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Missing evidence file").Write(w)
		return
	}
	defer file.Close()

	kind := sanitizeInput(r.FormValue("kind"))
	if kind == "" {
		kind = "photo"
	}

	ev, err := s.items.AttachEvidence(r.Context(), itemID, kind, header.Filename, file)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError("No such item").Write(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Attach evidence error", log.FieldError, err, log.FieldItemID, itemID)
		InternalServerError("Could not save evidence").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerEvidenceAdded(itemID).
		BodyHTML(`<div class="success">Evidence saved: ` +
			template.HTMLEscapeString(ev.Filename) + `</div>`).
		Write(w)
}

func (s *Server) handleGetEvidence(w http.ResponseWriter, r *http.Request) {
	evidenceID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		BadRequestError("Invalid evidence id").Write(w)
		return
	}

	ev, rc, err := s.items.OpenEvidence(r.Context(), evidenceID)
	if errors.Is(err, core.ErrNotFound) {
		NotFoundError("No such evidence").Write(w)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Open evidence error", log.FieldError, err, "evidence_id", evidenceID)
		InternalServerError("Could not read evidence").Write(w)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ev.Filename+`"`)
	if ev.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(ev.SizeBytes, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		slog.ErrorContext(r.Context(), "Stream evidence error", log.FieldError, err, "evidence_id", evidenceID)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	jobID, err := strconv.ParseInt(r.URL.Query().Get("job"), 10, 64)
	if err != nil {
		BadRequestError("Missing or invalid job parameter").Write(w)
		return
	}

	if _, err := s.jobs.GetJob(r.Context(), jobID); errors.Is(err, core.ErrNotFound) {
		NotFoundError("No such job").Write(w)
		return
	} else if err != nil {
		slog.ErrorContext(r.Context(), "Get job error", log.FieldError, err, log.FieldJobID, jobID)
		InternalServerError("Export failed").Write(w)
		return
	}

	items, err := s.lineItems.ListLineItems(r.Context(), jobID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List line items error", log.FieldError, err, log.FieldJobID, jobID)
		InternalServerError("Export failed").Write(w)
		return
	}

	records := make([]xlsx.Record, 0, len(items))
	for _, item := range items {
		records = append(records, xlsx.Record{
			{Key: "CODE", Value: item.Code},
			{Key: "DESCRIPTION", Value: item.Description},
			{Key: "BASE RATE", Value: item.BaseRate.Pounds()},
			{Key: "CONTRACT RATE UNIT", Value: item.ContractRate.Pounds()},
			{Key: "Unit", Value: item.Unit},
			{Key: "QTY", Value: item.Qty},
			{Key: "TOTAL", Value: item.Total.Pounds()},
			{Key: "LOCATION", Value: item.Location},
			{Key: "COMMENTS", Value: item.Comments},
			{Key: "ITEM_ID", Value: item.ID},
			{Key: "CATEGORY", Value: item.Category},
			{Key: "ASSIGNEE", Value: item.Assignee},
			{Key: "STATUS", Value: string(item.Status)},
		})
	}

	var buf bytes.Buffer
	if err := xlsx.WriteSchedule(records, &buf); err != nil {
		slog.ErrorContext(r.Context(), "Write workbook error", log.FieldError, err, log.FieldJobID, jobID)
		InternalServerError("Export failed").Write(w)
		return
	}

	filename := fmt.Sprintf("schedule-job-%d.xlsx", jobID)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleDashboardPartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	overview, err := s.getOverview(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Spend overview error", log.FieldError, err)
		_, _ = w.Write([]byte(`<section id="dashboard" class="dashboard"><div class="placeholder">Could not load spend overview</div></section>`))
		return
	}

	data := struct {
		Total          string
		Completed      string
		CountAll       int
		CountCompleted int
		ValuePercent   int
		CountPercent   int
	}{
		Total:          core.FormatPounds(overview.TotalPence),
		Completed:      core.FormatPounds(overview.CompletedPence),
		CountAll:       overview.CountAll,
		CountCompleted: overview.CountCompleted,
		ValuePercent:   overview.ValuePercent(),
		CountPercent:   overview.CountPercent(),
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="dashboard" class="dashboard"><div class="placeholder">Total: ` + data.Total + `</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", log.FieldError, err, "template", "dashboard.html")
		_, _ = w.Write([]byte(`<section id="dashboard" class="dashboard"><div class="placeholder">Could not render spend overview</div></section>`))
	}
}

const overviewKey = "overview"

func (s *Server) itemsKey(jobID int64) string {
	return "job-" + strconv.FormatInt(jobID, 10)
}

func (s *Server) invalidateItems(jobID int64) {
	s.itemsCache.Delete(s.itemsKey(jobID))
}

func (s *Server) invalidateOverview() {
	s.overviewCache.Delete(overviewKey)
}

func (s *Server) getItems(ctx context.Context, jobID int64) ([]core.LineItem, error) {
	key := s.itemsKey(jobID)

	if items, found := s.itemsCache.Get(key); found {
		slog.DebugContext(ctx, "Items cache hit", log.FieldJobID, jobID, "count", len(items))
		result := make([]core.LineItem, len(items))
		copy(result, items)
		return result, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	items, err := s.lineItems.ListLineItems(cctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list line items (job=%d): %w", jobID, err)
	}

	s.itemsCache.Set(key, items)
	slog.DebugContext(ctx, "Items cached", log.FieldJobID, jobID, "count", len(items))
	return items, nil
}

func (s *Server) getOverview(ctx context.Context) (core.SpendOverview, error) {
	if data, found := s.overviewCache.Get(overviewKey); found {
		slog.DebugContext(ctx, "Overview cache hit")
		return data, nil
	}

	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	data, err := s.dashboard.ReadSpendOverview(cctx)
	if err != nil {
		return core.SpendOverview{}, fmt.Errorf("read spend overview: %w", err)
	}

	s.overviewCache.Set(overviewKey, data)
	return data, nil
}
