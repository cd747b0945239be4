package addressing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/EternisAI/silo-enroll/internal/coreapi"
)

const (
	CodeReservedIP = "reservedIp"
	CodeInvalidIP  = "invalidIp"
)

var ErrValidationUnavailable = errors.New("address validation unavailable")

// Mode tells the negotiator whether the addresses belong to a new device or
// to an existing one being edited.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
)

// ShouldRecommend reports whether a location change should pull fresh
// recommendations. An edited device keeps its existing reservation.
func ShouldRecommend(mode Mode) bool {
	return mode == ModeCreate
}

// Pool is the server-owned address pool.
type Pool interface {
	RecommendIPs(ctx context.Context, locationID int64) ([]coreapi.IPRecommendation, error)
	ValidateIPs(ctx context.Context, locationID int64, ips []string) ([]coreapi.IPValidation, error)
}

// AddressErrors maps a candidate index to CodeReservedIP or CodeInvalidIP.
type AddressErrors map[int]string

func (e AddressErrors) Error() string {
	idx := make([]int, 0, len(e))
	for i := range e {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, strconv.Itoa(i)+"="+e[i])
	}
	return "address validation failed: " + strings.Join(parts, ", ")
}

type Negotiator struct {
	pool Pool
}

func NewNegotiator(pool Pool) *Negotiator {
	return &Negotiator{pool: pool}
}

func (n *Negotiator) Recommend(ctx context.Context, locationID int64) ([]coreapi.IPRecommendation, error) {
	recs, err := n.pool.RecommendIPs(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("recommend addresses for location %d: %w", locationID, err)
	}
	return recs, nil
}

func (n *Negotiator) Validate(ctx context.Context, locationID int64, candidates []string) ([]coreapi.IPValidation, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	res, err := n.pool.ValidateIPs(ctx, locationID, candidates)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationUnavailable, err)
	}
	// Results are matched to candidates by index.
	if len(res) != len(candidates) {
		return nil, fmt.Errorf("%w: pool returned %d results for %d addresses",
			ErrValidationUnavailable, len(res), len(candidates))
	}
	return res, nil
}

// Revalidate checks every candidate that is not part of reserved against the
// pool. It returns AddressErrors when any candidate fails, and an error
// wrapping ErrValidationUnavailable when the pool could not be asked.
func (n *Negotiator) Revalidate(ctx context.Context, locationID int64, candidates, reserved []string) error {
	own := make(map[string]struct{}, len(reserved))
	for _, addr := range reserved {
		own[addr] = struct{}{}
	}

	failures := AddressErrors{}
	var toCheck []string
	var indexes []int
	for i, addr := range candidates {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			failures[i] = CodeInvalidIP
			continue
		}
		if _, ok := own[addr]; ok {
			continue
		}
		toCheck = append(toCheck, addr)
		indexes = append(indexes, i)
	}

	if len(toCheck) > 0 {
		results, err := n.Validate(ctx, locationID, toCheck)
		if err != nil {
			slog.Warn("Address revalidation failed", "location_id", locationID, "error", err)
			return err
		}
		for j, r := range results {
			switch {
			case !r.Valid:
				failures[indexes[j]] = CodeInvalidIP
			case !r.Available:
				failures[indexes[j]] = CodeReservedIP
			}
		}
	}

	if len(failures) > 0 {
		return failures
	}
	return nil
}
