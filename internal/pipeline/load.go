package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

// LoadSubject loads every session of s and checks each one is aligned
// to bm.
func LoadSubject(ctx context.Context, loader brain.Loader, bm *brain.BrainMap, s brain.Subject) (brain.SubjectData, error) {
	data := brain.SubjectData{ID: s.ID, Sessions: make([]*mat.Dense, 0, len(s.Sessions))}
	if len(s.Sessions) == 0 {
		return data, errors.New("no sessions")
	}

	for i, path := range s.Sessions {
		if err := ctx.Err(); err != nil {
			return data, err
		}

		x, sessionMap, err := loader.Load(ctx, path)
		if err != nil {
			return data, fmt.Errorf("session %d: %w", i, err)
		}
		if x == nil {
			return data, fmt.Errorf("session %d: %s holds no time series", i, path)
		}
		if sessionMap != nil && !sessionMap.Equal(bm) {
			return data, fmt.Errorf("session %d: %w", i, brain.MismatchError("brain map", sessionMap.Len(), bm.Len()))
		}
		if _, g := x.Dims(); g != bm.Len() {
			return data, fmt.Errorf("session %d: %w", i, brain.MismatchError("grayordinates", g, bm.Len()))
		}

		data.Sessions = append(data.Sessions, x)
	}

	return data, nil
}
