package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felipepmaragno/solmate-api/internal/domain"
)

var tokenIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{32,44}$`)

// Price validates the ids query value. Data always holds a usable id list:
// the default token when raw is empty or invalid.
func Price(raw string, limits Limits) Result[domain.PriceRequest] {
	limits = limits.withDefaults()
	res := Result[domain.PriceRequest]{Valid: true}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		res.Data.IDs = []string{domain.DefaultTokenID}
		return res
	}

	seen := make(map[string]bool)
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		id := strings.TrimSpace(part)
		if id == "" {
			continue
		}
		if !tokenIDPattern.MatchString(id) {
			res.fail(fmt.Sprintf("invalid token id %q", truncateID(id)))
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	switch {
	case len(ids) == 0 && res.Valid:
		res.fail("ids must name at least one token")
	case len(ids) > limits.MaxPriceIDs:
		res.fail(fmt.Sprintf("ids must name at most %d tokens", limits.MaxPriceIDs))
	}

	if !res.Valid {
		res.Data.IDs = []string{domain.DefaultTokenID}
		return res
	}
	res.Data.IDs = ids
	return res
}

func truncateID(id string) string {
	if len(id) > 48 {
		return id[:48]
	}
	return id
}
