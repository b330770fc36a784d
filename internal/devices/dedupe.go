package devices

// Dedupe keeps one record per url. A later record wins only when it is active
// and the kept one is not; otherwise the first occurrence stays. Records
// without a url are dropped. Output follows first-occurrence order.
func Dedupe(records []Record) []Record {
	index := make(map[string]int, len(records))
	out := make([]Record, 0, len(records))

	for _, rec := range records {
		url := rec.URL()
		if url == "" {
			continue
		}

		pos, seen := index[url]
		if !seen {
			index[url] = len(out)
			out = append(out, rec)
			continue
		}

		if rec.Status() == StatusActive && out[pos].Status() != StatusActive {
			out[pos] = rec
		}
	}

	return out
}
