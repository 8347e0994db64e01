package anthropic

// CachedSystem builds a system prompt whose rubric is cached across the
// batches of one phase. The rubric block carries the cache breakpoint; the
// optional tail (per-mission calibration notes) follows it uncached.
func CachedSystem(rubric, tail string) []SystemBlock {
	blocks := []SystemBlock{{
		Text:         rubric,
		CacheControl: &CacheControl{TTL: "5m"},
	}}
	if tail != "" {
		blocks = append(blocks, SystemBlock{Text: tail})
	}
	return blocks
}
