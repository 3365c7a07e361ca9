package quotafs

import (
	"fmt"

	"github.com/dargueta/quotafs/blockstore"
	"github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/dargueta/quotafs/tree"
	"github.com/facebookgo/clock"
	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
)

// StoreOpener creates the block store for a file system with the given limits.
// Returning a nil store and no error disables byte storage.
type StoreOpener func(limits common.Limits) (*blockstore.Store, error)

type settings struct {
	limits     common.Limits
	logger     logrus.FieldLogger
	clock      clock.Clock
	resolution tree.ResolutionMode
	openStore  StoreOpener
}

// Option configures a [FileSystem] created with [New].
type Option func(*settings) error

func defaultSettings() settings {
	return settings{
		limits:     common.DefaultLimits(),
		logger:     logrus.StandardLogger(),
		clock:      clock.New(),
		resolution: tree.ResolveRecursive,
		openStore:  openMemoryStore,
	}
}

func openMemoryStore(limits common.Limits) (*blockstore.Store, error) {
	return blockstore.NewMemory(limits.BlockSize, limits.BlockBudget()), nil
}

// WithLimits replaces the default capacity limits.
func WithLimits(limits common.Limits) Option {
	return func(s *settings) error {
		err := limits.Validate()
		if err != nil {
			return err
		}
		s.limits = limits
		return nil
	}
}

// WithLogger sets the logger. The default is logrus' standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// WithClock sets where timestamps come from.
func WithClock(clk clock.Clock) Option {
	return func(s *settings) error {
		s.clock = clk
		return nil
	}
}

// WithResolution sets the path resolution mode. The default is
// [tree.ResolveRecursive].
func WithResolution(mode tree.ResolutionMode) Option {
	return func(s *settings) error {
		if mode != tree.ResolveRecursive && mode != tree.ResolveRootOnly {
			return errors.ErrInvalidArgument.WithMessage(
				fmt.Sprintf("invalid resolution mode %d", int(mode)),
			)
		}
		s.resolution = mode
		return nil
	}
}

// WithBlockStore stores file content in `store`. The store must use the same
// block size as the file system and hold at least as many blocks as the block
// budget.
func WithBlockStore(store *blockstore.Store) Option {
	return func(s *settings) error {
		s.openStore = func(limits common.Limits) (*blockstore.Store, error) {
			if store.BytesPerBlock != limits.BlockSize {
				return nil, errors.ErrInvalidArgument.WithMessage(
					fmt.Sprintf(
						"store has %d-byte blocks, file system needs %d",
						store.BytesPerBlock,
						limits.BlockSize,
					),
				)
			}
			if store.TotalBlocks < limits.BlockBudget() {
				return nil, errors.ErrInvalidArgument.WithMessage(
					fmt.Sprintf(
						"store has %d blocks, file system needs at least %d",
						store.TotalBlocks,
						limits.BlockBudget(),
					),
				)
			}
			return store, nil
		}
		return nil
	}
}

// WithFileStore stores file content in the file `name` on `filesystem`. The
// file is created or truncated when the file system is created.
func WithFileStore(filesystem billy.Filesystem, name string) Option {
	return func(s *settings) error {
		s.openStore = func(limits common.Limits) (*blockstore.Store, error) {
			return blockstore.NewFile(filesystem, name, limits.BlockSize, limits.BlockBudget())
		}
		return nil
	}
}

// WithoutBlockStore turns off byte storage. Reads and writes still check
// permissions and charge the block budget, and report how many bytes they
// would have transferred, but no data is kept.
func WithoutBlockStore() Option {
	return func(s *settings) error {
		s.openStore = nil
		return nil
	}
}
