package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/Rick-Grimes-Torn/torn-discord-bot/internal/torn"
)

// PageSource fetches pages of the reverse-chronological attack feed
type PageSource interface {
	FetchAttacks(ctx context.Context, limit int, to *int64) (*torn.AttacksPage, error)
}

// EpochSource supplies the current scan epoch (the ranked war start timestamp)
type EpochSource interface {
	WarStart(ctx context.Context) (int64, error)
}

// Checkpoint is the persisted scan position for one epoch
type Checkpoint struct {
	WarStart     int64
	LastTS       int64
	LastAttackID int64
	BackfillTo   *int64
	Initialized  bool
}

// Contribution is one attack's addition to the aggregates
type Contribution struct {
	PlayerID    int64
	Name        string
	Bucket      Bucket
	Outcome     Outcome
	FairFight   *float64
	RespectGain float64
	RespectLoss float64
}

// Store is the durable side of the scan: checkpoint, dedup ledger and
// aggregates. Implemented by the storage repository.
type Store interface {
	// Checkpoint returns the checkpoint for an epoch, or nil if none exists
	Checkpoint(warStart int64) (*Checkpoint, error)
	// SaveCheckpoint upserts the checkpoint
	SaveCheckpoint(cp *Checkpoint) error
	// ClaimAttack records the attack id for the epoch. Returns true the
	// first time an id is claimed and false on every later attempt.
	ClaimAttack(warStart, attackID int64) (bool, error)
	// ApplyAttack increments the outcome tally, and the player aggregate
	// when the outcome counts as a won hit
	ApplyAttack(warStart int64, c Contribution) error
}

// Budgets while the backfill is still running and once it has finished.
const (
	headPagesCatchup     = 2
	backfillPagesCatchup = 10
	headPagesSteady      = 3
)

// Engine incrementally scans the attack feed for the current epoch,
// maintaining the checkpoint watermark and the per-player aggregates.
// A single engine-wide mutex serializes scans; concurrent command
// invocations are additionally collapsed through a singleflight group.
type Engine struct {
	src    PageSource
	epochs EpochSource
	store  Store

	pageLimit int

	mu sync.Mutex
	sf singleflight.Group
}

// New creates a scan engine
func New(src PageSource, epochs EpochSource, store Store) *Engine {
	return &Engine{
		src:       src,
		epochs:    epochs,
		store:     store,
		pageLimit: 100,
	}
}

// Advance runs one bounded scan: a head phase catching up on attacks newer
// than the watermark, then (until the epoch is fully covered) a backfill
// phase walking older pages toward the war start. The checkpoint is persisted
// even when a page fetch fails partway, so the next call resumes from the
// last durable position.
//
// Returns whether the backfill has completed and how many pages were fetched.
func (e *Engine) Advance(ctx context.Context, headPages, backfillPages int) (bool, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	warStart, err := e.epochs.WarStart(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("resolve war start: %w", err)
	}

	cp, err := e.store.Checkpoint(warStart)
	if err != nil {
		return false, 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		cp = &Checkpoint{WarStart: warStart}
		slog.Info("Starting scan for new war epoch", "warStart", warStart)
	}

	pages := 0

	headLeftOff, floorReached, n, headErr := e.headPhase(ctx, cp, headPages)
	pages += n
	if headErr != nil {
		if saveErr := e.store.SaveCheckpoint(cp); saveErr != nil {
			slog.Error("Failed to persist checkpoint after fetch error", "error", saveErr)
		}
		return cp.Initialized, pages, headErr
	}

	if !cp.Initialized {
		if floorReached {
			// The head walk already reached the epoch start; there is
			// nothing older left to cover.
			cp.Initialized = true
			cp.BackfillTo = nil
		} else {
			n, backErr := e.backfillPhase(ctx, cp, backfillPages, headLeftOff)
			pages += n
			if backErr != nil {
				if saveErr := e.store.SaveCheckpoint(cp); saveErr != nil {
					slog.Error("Failed to persist checkpoint after fetch error", "error", saveErr)
				}
				return cp.Initialized, pages, backErr
			}
		}
	}

	if err := e.store.SaveCheckpoint(cp); err != nil {
		return cp.Initialized, pages, fmt.Errorf("save checkpoint: %w", err)
	}
	return cp.Initialized, pages, nil
}

// headPhase walks pages from the newest attack backwards until it reaches the
// stored watermark, the epoch start, the end of the feed, or the page budget.
// The watermark advances to the newest observed attack when the phase
// completes; a phase aborted by a fetch error does not advance, so the next
// scan re-walks the same window and the dedup ledger absorbs the repeats.
func (e *Engine) headPhase(ctx context.Context, cp *Checkpoint, headPages int) (leftOff *int64, floorReached bool, pages int, err error) {
	prevTS, prevID := cp.LastTS, cp.LastAttackID
	newTS, newID := prevTS, prevID

	var to *int64
	done := false

	for i := 0; i < headPages && !done; i++ {
		page, ferr := e.src.FetchAttacks(ctx, e.pageLimit, to)
		if ferr != nil {
			return nil, false, pages, fmt.Errorf("fetch head page: %w", ferr)
		}
		pages++

		for _, a := range page.Attacks {
			// Already-processed boundary: ordered by (started, id)
			if a.Started < prevTS || (a.Started == prevTS && a.ID <= prevID) {
				done = true
				break
			}
			if a.Started < cp.WarStart {
				done = true
				floorReached = true
				break
			}
			if a.Started > newTS || (a.Started == newTS && a.ID > newID) {
				newTS, newID = a.Started, a.ID
			}
			if cerr := e.processAttack(cp.WarStart, a); cerr != nil {
				return nil, false, pages, cerr
			}
		}
		if done {
			break
		}

		next := page.PrevCursor()
		if next == nil || len(page.Attacks) == 0 {
			done = true
			floorReached = true
			break
		}
		to = next
		leftOff = next
	}

	// Monotonic advance only
	if newTS > cp.LastTS || (newTS == cp.LastTS && newID > cp.LastAttackID) {
		cp.LastTS, cp.LastAttackID = newTS, newID
	}
	if done {
		leftOff = nil
	}
	return leftOff, floorReached, pages, nil
}

// backfillPhase walks strictly older pages toward the epoch start, resuming
// from the persisted backfill cursor or, the first time, from wherever the
// head walk stopped. The cursor is persisted after every completed page.
func (e *Engine) backfillPhase(ctx context.Context, cp *Checkpoint, backfillPages int, headLeftOff *int64) (pages int, err error) {
	cursor := cp.BackfillTo
	if cursor == nil {
		cursor = headLeftOff
	}

	for i := 0; i < backfillPages && !cp.Initialized; i++ {
		page, ferr := e.src.FetchAttacks(ctx, e.pageLimit, cursor)
		if ferr != nil {
			return pages, fmt.Errorf("fetch backfill page: %w", ferr)
		}
		pages++

		for _, a := range page.Attacks {
			if a.Started < cp.WarStart {
				cp.Initialized = true
				cp.BackfillTo = nil
				break
			}
			if cerr := e.processAttack(cp.WarStart, a); cerr != nil {
				return pages, cerr
			}
		}
		if cp.Initialized {
			break
		}

		next := page.PrevCursor()
		if next == nil || len(page.Attacks) == 0 {
			cp.Initialized = true
			cp.BackfillTo = nil
			break
		}
		cursor = next
		cp.BackfillTo = next

		if serr := e.store.SaveCheckpoint(cp); serr != nil {
			return pages, fmt.Errorf("save checkpoint: %w", serr)
		}
	}
	return pages, nil
}

// processAttack claims the attack in the dedup ledger and, if this is the
// first sighting, applies its contribution to the aggregates. A malformed
// record (no attacker id) is skipped without failing the page.
func (e *Engine) processAttack(warStart int64, a torn.Attack) error {
	if a.Attacker == nil || a.Attacker.ID <= 0 {
		slog.Debug("Skipping attack without attacker", "attackID", a.ID)
		return nil
	}

	claimed, err := e.store.ClaimAttack(warStart, a.ID)
	if err != nil {
		return fmt.Errorf("claim attack %d: %w", a.ID, err)
	}
	if !claimed {
		return nil
	}

	bucket := BucketOutside
	if a.IsRankedWar {
		bucket = BucketRanked
	}

	c := Contribution{
		PlayerID:    a.Attacker.ID,
		Name:        a.Attacker.Name,
		Bucket:      bucket,
		Outcome:     ParseOutcome(a.Result),
		FairFight:   a.Modifiers.FairFight,
		RespectGain: a.RespectGain,
		RespectLoss: a.RespectLoss,
	}
	if err := e.store.ApplyAttack(warStart, c); err != nil {
		return fmt.Errorf("apply attack %d: %w", a.ID, err)
	}
	return nil
}

// EnsureFresh runs a budgeted scan for the current epoch, collapsing
// concurrent callers into a single run. Budgets are small once the backfill
// has finished and larger while older pages are still being covered.
// Returns the epoch and whether the backfill has completed.
func (e *Engine) EnsureFresh(ctx context.Context) (int64, bool, error) {
	warStart, err := e.epochs.WarStart(ctx)
	if err != nil {
		return 0, false, err
	}

	v, err, _ := e.sf.Do("advance", func() (any, error) {
		head, back := headPagesSteady, 0
		cp, cerr := e.store.Checkpoint(warStart)
		if cerr != nil {
			return false, cerr
		}
		if cp == nil || !cp.Initialized {
			head, back = headPagesCatchup, backfillPagesCatchup
		}
		initialized, _, aerr := e.Advance(ctx, head, back)
		return initialized, aerr
	})
	if err != nil {
		return warStart, false, err
	}
	return warStart, v.(bool), nil
}
