package probe

import (
	"fmt"
	"io"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
)

// Explain prints the seed derivation for params, repeating it to show the
// result is stable within a process. It returns false if any repetition
// differs from the first.
func Explain(w io.Writer, params domain.QueryParameters, repeats int) (bool, error) {
	first, err := domain.Evaluate(params)
	if err != nil {
		return false, err
	}

	fmt.Fprintf(w, "Canonical: %s\n\n", first.Canonical)

	stable := true
	for i := 1; i <= repeats; i++ {
		ev, err := domain.Evaluate(params)
		if err != nil {
			return false, err
		}
		if ev != first {
			stable = false
		}
		fmt.Fprintf(w, "Run %d: Seed = %d\n", i, uint32(ev.Seed))
		fmt.Fprintf(w, "  Area size: %s\n", domain.FormatFloat(ev.Area))
		fmt.Fprintf(w, "  Area hash: %d\n", ev.AreaHash)
		fmt.Fprintf(w, "  Seed mod: %d\n", ev.SeedMod)
		fmt.Fprintf(w, "  Combined value: %d\n", ev.Combined)
		fmt.Fprintf(w, "  Number of detections: %d\n\n", ev.Count)
	}
	return stable, nil
}
