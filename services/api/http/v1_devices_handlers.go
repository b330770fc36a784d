package http

import (
	"cmp"
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/f5703swl/swl-web-sdr/internal/devices"
	"github.com/f5703swl/swl-web-sdr/internal/i18n"
	"github.com/f5703swl/swl-web-sdr/services/api/db"
	"github.com/f5703swl/swl-web-sdr/services/api/snapshot"
)

var sortableFields = map[string]bool{
	devices.FieldName:        true,
	devices.FieldSource:      true,
	devices.FieldStatus:      true,
	devices.FieldUsers:       true,
	devices.FieldMaxUsers:    true,
	devices.FieldUsersRatio:  true,
	devices.FieldSNR:         true,
	devices.FieldBands:       true,
	devices.FieldAntenna:     true,
	devices.FieldUptime:      true,
	devices.FieldGrid:        true,
	devices.FieldCountryCode: true,
	devices.FieldCity:        true,
	devices.FieldRegion:      true,
}

type deviceQuery struct {
	AllStatuses bool
	Source      string
	Country     string
	Sort        string
	Desc        bool
	Page        int
	Limit       int
}

func parseDeviceQuery(c *gin.Context) (deviceQuery, error) {
	q := deviceQuery{Page: 1}

	switch status := strings.ToLower(c.Query("status")); status {
	case "", devices.StatusActive:
	case "all":
		q.AllStatuses = true
	default:
		return q, fmt.Errorf("invalid status %q, expected active or all", status)
	}

	q.Source = strings.TrimSpace(c.Query("source"))
	q.Country = strings.ToUpper(strings.TrimSpace(c.Query("country")))

	if sortBy := c.Query("sort"); sortBy != "" {
		if !sortableFields[sortBy] {
			return q, fmt.Errorf("invalid sort field %q", sortBy)
		}
		q.Sort = sortBy
	}

	switch order := strings.ToLower(c.Query("order")); order {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, fmt.Errorf("invalid order %q, expected asc or desc", order)
	}

	if p := c.Query("page"); p != "" {
		val, err := strconv.Atoi(p)
		if err != nil || val <= 0 {
			return q, fmt.Errorf("invalid page %q", p)
		}
		q.Page = val
	}

	if l := c.Query("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val <= 0 || val > 1000 {
			return q, fmt.Errorf("invalid limit %q", l)
		}
		q.Limit = val
	}

	return q, nil
}

// filterDevices returns the records matching q in snapshot order. The result
// is a new slice; records are shared.
func (s *Server) filterDevices(records []devices.Record, q deviceQuery) []devices.Record {
	source := q.Source
	if source != "" && s.deps.Registry != nil {
		if src, ok := s.deps.Registry.Get(source); ok {
			source = src.DisplayName()
		}
	}

	out := make([]devices.Record, 0, len(records))
	for _, rec := range records {
		if !q.AllStatuses && rec.Status() != devices.StatusActive {
			continue
		}
		if source != "" {
			if name, _ := rec.String(devices.FieldSource); !strings.EqualFold(name, source) {
				continue
			}
		}
		if q.Country != "" {
			if cc, _ := rec.String(devices.FieldCountryCode); cc != q.Country {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

// sortDevices orders records by field. Numeric values compare as numbers,
// everything else case-insensitively as text. Missing values go last in both
// directions.
func sortDevices(records []devices.Record, field string, desc bool) {
	if field == "" {
		return
	}
	slices.SortStableFunc(records, func(a, b devices.Record) int {
		aMissing, bMissing := blank(a[field]), blank(b[field])
		switch {
		case aMissing && bMissing:
			return 0
		case aMissing:
			return 1
		case bMissing:
			return -1
		}

		var r int
		fa, aok := a.Float(field)
		fb, bok := b.Float(field)
		if aok && bok {
			r = cmp.Compare(fa, fb)
		} else {
			r = strings.Compare(strings.ToLower(fmt.Sprint(a[field])), strings.ToLower(fmt.Sprint(b[field])))
		}
		if desc {
			r = -r
		}
		return r
	})
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// handleV1ListDevices returns the current device table
// GET /api/v1/devices?status=all&source=web888&country=FR&sort=users&order=desc&page=1&limit=50
func (s *Server) handleV1ListDevices(c *gin.Context) {
	q, err := parseDeviceQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, tag, ok := s.snapshotFor(c)
	if !ok {
		return
	}

	filtered := s.filterDevices(snap.Records, q)
	sortDevices(filtered, q.Sort, q.Desc)

	total := len(filtered)
	page := filtered
	meta := gin.H{
		"total_count": total,
		"summary":     snapshot.Summarize(snap.Records),
		"sources":     snap.Sources,
		"updated_at":  snap.UpdatedAt.Format(time.RFC3339),
		"lang":        i18n.Code(tag),
	}

	if q.Limit > 0 {
		pages := (total + q.Limit - 1) / q.Limit
		// pages past the end are empty; comparing before multiplying keeps a
		// huge page number from overflowing
		start := total
		if q.Page <= pages {
			start = (q.Page - 1) * q.Limit
		}
		end := min(start+q.Limit, total)
		page = filtered[start:end]
		meta["page"] = q.Page
		meta["limit"] = q.Limit
		meta["total_pages"] = pages
	}
	meta["count"] = len(page)

	c.JSON(http.StatusOK, gin.H{
		"data": page,
		"meta": meta,
	})
}

// handleV1DevicesSummary returns the headline metrics
// GET /api/v1/devices/summary
func (s *Server) handleV1DevicesSummary(c *gin.Context) {
	snap, _, ok := s.snapshotFor(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": snapshot.Summarize(snap.Records),
		"meta": gin.H{
			"updated_at": snap.UpdatedAt.Format(time.RFC3339),
		},
	})
}

// handleV1RandomDevice picks an available receiver
// GET /api/v1/devices/random
func (s *Server) handleV1RandomDevice(c *gin.Context) {
	snap, tag, ok := s.snapshotFor(c)
	if !ok {
		return
	}

	s.randMu.Lock()
	rec, found := devices.PickRandomAvailable(snap.Records, s.deps.Rand)
	s.randMu.Unlock()

	if !found {
		abortLocalized(c, http.StatusNotFound, tag, i18n.MsgNoDeviceAvailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rec})
}

// handleV1DeviceHistory returns stored occupancy samples for one receiver
// GET /api/v1/devices/history?url=...&last_n=100&last_n_days=7&start=...&end=...
func (s *Server) handleV1DeviceHistory(c *gin.Context) {
	tag := lang(c)
	if s.deps.History == nil {
		abortLocalized(c, http.StatusNotImplemented, tag, i18n.MsgHistoryDisabled)
		return
	}

	url := strings.TrimSpace(c.Query("url"))
	if url == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	limit := s.cfg.DefaultLimit
	if limitStr := c.Query("last_n"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid last_n"})
			return
		}
		limit = parsed
	}

	var since, until *time.Time

	if daysStr := c.Query("last_n_days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid last_n_days"})
			return
		}
		t := time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
		since = &t
	}

	if startStr := c.Query("start"); startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start timestamp"})
			return
		}
		tt := t.UTC()
		since = &tt
	}

	if endStr := c.Query("end"); endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end timestamp"})
			return
		}
		tt := t.UTC()
		until = &tt
	}

	if since == nil {
		t := time.Now().UTC().Add(-time.Duration(s.cfg.DefaultDays) * 24 * time.Hour)
		since = &t
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	device, err := s.deps.History.GetDeviceByURL(ctx, url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if device == nil {
		abortLocalized(c, http.StatusNotFound, tag, i18n.MsgDeviceNotFound)
		return
	}

	samples, err := s.deps.History.FetchSamples(ctx, db.SampleQuery{
		DeviceID: device.ID,
		Limit:    limit,
		Since:    since,
		Until:    until,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"device":  device,
			"samples": samples,
		},
		"meta": gin.H{
			"count": len(samples),
			"since": since.Format(time.RFC3339),
		},
	})
}

// handleV1OccupancyAverages returns mean occupancy of active receivers
// GET /api/v1/devices/averages
func (s *Server) handleV1OccupancyAverages(c *gin.Context) {
	if s.deps.History == nil {
		abortLocalized(c, http.StatusNotImplemented, lang(c), i18n.MsgHistoryDisabled)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	avg, err := s.deps.History.GetOccupancyAverages(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": avg})
}
