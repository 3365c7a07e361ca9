package filetable_test

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/dargueta/quotafs/blockstore"
	c "github.com/dargueta/quotafs/common"
	"github.com/dargueta/quotafs/errors"
	"github.com/dargueta/quotafs/filetable"
	qtest "github.com/dargueta/quotafs/testing"
	"github.com/dargueta/quotafs/tree"
	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var readWrite = tree.Permissions{Read: true, Write: true}

type fixture struct {
	table     *filetable.Table
	allocator *c.Allocator
	root      *tree.Directory
	tree      *tree.Tree
	clock     *clock.Mock
}

func newFixture(limits c.Limits, withStore bool) fixture {
	clk := clock.NewMock()
	allocator := c.NewAllocator(limits.BlockBudget())

	var store *blockstore.Store
	if withStore {
		store = blockstore.NewMemory(limits.BlockSize, limits.BlockBudget())
	}

	fsTree := tree.New(limits, tree.ResolveRecursive, clk)
	return fixture{
		table:     filetable.New(limits, allocator, store, clk),
		allocator: allocator,
		root:      fsTree.Root(),
		tree:      fsTree,
		clock:     clk,
	}
}

func smallLimits() c.Limits {
	limits := c.DefaultLimits()
	limits.BlockSize = 16
	limits.MaxFileSize = 128
	limits.TotalBlocks = 12
	return limits
}

func TestCreateFile__Basic(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	fx.clock.Add(5 * time.Minute)

	perms := tree.Permissions{Read: true, Write: true, Execute: false}
	require.NoError(t, fx.table.CreateFile(fx.root, "readme.txt", perms))

	entry := fx.root.Lookup("readme.txt")
	require.NotNil(t, entry)
	assert.Equal(t, tree.KindRegular, entry.Kind())
	assert.EqualValues(t, 0, entry.Size())
	assert.Equal(t, perms, entry.Permissions)
	assert.Equal(t, fx.clock.Now(), entry.CreatedAt)
	assert.Equal(t, fx.clock.Now(), entry.ModifiedAt)
	assert.Empty(t, entry.File().Blocks)
}

func TestCreateFile__SharedNamespace(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)

	require.NoError(t, fx.tree.CreateDirectory("/docs"))
	err := fx.table.CreateFile(fx.root, "docs", readWrite)
	assert.ErrorIs(t, err, errors.ErrExists, "file collided with a directory")

	require.NoError(t, fx.table.CreateFile(fx.root, "notes", readWrite))
	err = fx.table.CreateFile(fx.root, "notes", readWrite)
	assert.ErrorIs(t, err, errors.ErrExists, "file collided with a file")

	err = fx.tree.CreateDirectory("/notes")
	assert.ErrorIs(t, err, errors.ErrExists, "directory collided with a file")
}

func TestCreateFile__Capacity(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)

	for i := 0; i < c.DefaultMaxEntriesPerDirectory; i++ {
		require.NoError(t, fx.table.CreateFile(fx.root, fmt.Sprintf("f%03d", i), readWrite))
	}
	assert.Equal(t, c.DefaultMaxEntriesPerDirectory, fx.root.Len())

	err := fx.table.CreateFile(fx.root, "one-more", readWrite)
	assert.ErrorIs(t, err, errors.ErrNoSpaceOnDevice)

	// Capacity is checked before anything else.
	err = fx.table.CreateFile(fx.root, "f000", readWrite)
	assert.ErrorIs(t, err, errors.ErrNoSpaceOnDevice)
	assert.Equal(t, c.DefaultMaxEntriesPerDirectory, fx.root.Len())
}

func TestCreateFile__NameLength(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)

	longest := strings.Repeat("x", c.DefaultMaxFilenameLength-1)
	assert.NoError(t, fx.table.CreateFile(fx.root, longest, readWrite))

	for _, length := range []int{c.DefaultMaxFilenameLength, c.DefaultMaxFilenameLength + 1} {
		err := fx.table.CreateFile(fx.root, strings.Repeat("y", length), readWrite)
		assert.ErrorIsf(t, err, errors.ErrInvalidArgument, "name of length %d", length)
	}
}

func TestCreateFile__ReservedNames(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)

	for _, name := range []string{"", ".", ".."} {
		err := fx.table.CreateFile(fx.root, name, readWrite)
		assert.ErrorIsf(t, err, errors.ErrInvalidArgument, "name %q", name)
	}
	assert.Equal(t, 0, fx.root.Len())
}

func TestReadWrite__Accounting(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	require.NoError(t, fx.table.CreateFile(fx.root, "readme.txt", readWrite))

	n, err := fx.table.WriteFile(fx.root, "readme.txt", make([]byte, 100), 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.EqualValues(t, 100, fx.root.Lookup("readme.txt").Size())
	assert.EqualValues(t, 1, fx.allocator.Used())

	n, err = fx.table.ReadFile(fx.root, "readme.txt", make([]byte, 50), 80)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	n, err = fx.table.ReadFile(fx.root, "readme.txt", make([]byte, 50), 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = fx.table.ReadFile(fx.root, "readme.txt", make([]byte, 50), 5000)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWrite__QuotaArithmetic(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	require.NoError(t, fx.table.CreateFile(fx.root, "f", readWrite))

	// Growth of 1 byte costs a whole block, and every growth is charged on its
	// own.
	_, err := fx.table.WriteFile(fx.root, "f", []byte{1}, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fx.allocator.Used())

	_, err = fx.table.WriteFile(fx.root, "f", []byte{2}, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fx.allocator.Used())

	// Overwriting doesn't grow the file and costs nothing.
	_, err = fx.table.WriteFile(fx.root, "f", []byte{3, 4}, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fx.allocator.Used())

	// 4097 bytes of growth is two blocks.
	_, err = fx.table.WriteFile(fx.root, "f", make([]byte, 4097), 2)
	require.NoError(t, err)
	assert.EqualValues(t, 4, fx.allocator.Used())
	assert.EqualValues(t, 4099, fx.root.Lookup("f").Size())
	assert.Equal(
		t,
		[]c.PhysicalBlock{0, 1, 2, 3},
		fx.root.Lookup("f").File().Blocks,
	)
}

func TestWrite__BudgetExhausted(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	require.NoError(t, fx.table.CreateFile(fx.root, "big", readWrite))
	require.NoError(t, fx.table.CreateFile(fx.root, "small", readWrite))

	n, err := fx.table.WriteFile(fx.root, "big", make([]byte, c.DefaultMaxFileSize), 0)
	require.NoError(t, err)
	assert.Equal(t, c.DefaultMaxFileSize, n)
	assert.EqualValues(t, 0, fx.allocator.Free())

	fx.clock.Add(time.Second)
	n, err = fx.table.WriteFile(fx.root, "small", []byte{1}, 0)
	assert.ErrorIs(t, err, errors.ErrNoSpaceOnDevice)
	assert.Equal(t, 0, n)

	small := fx.root.Lookup("small")
	assert.EqualValues(t, 0, small.Size(), "size changed after failed allocation")
	assert.True(t, small.ModifiedAt.Before(fx.clock.Now()), "modification time changed")

	// The directory still has room; only the block budget is gone.
	assert.NoError(t, fx.table.CreateFile(fx.root, "another", readWrite))
}

func TestWrite__MaxFileSize(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	require.NoError(t, fx.table.CreateFile(fx.root, "f", readWrite))

	_, err := fx.table.WriteFile(fx.root, "f", []byte{1}, c.DefaultMaxFileSize)
	assert.ErrorIs(t, err, errors.ErrNoSpaceOnDevice)
	assert.EqualValues(t, 0, fx.allocator.Used(), "blocks were allocated for a rejected write")
	assert.EqualValues(t, 0, fx.root.Lookup("f").Size())

	n, err := fx.table.WriteFile(fx.root, "f", []byte{1}, c.DefaultMaxFileSize-1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.EqualValues(t, c.DefaultMaxFileSize, fx.root.Lookup("f").Size())
}

func TestWrite__OffsetNearInt64Limit(t *testing.T) {
	for _, withStore := range []bool{false, true} {
		t.Run(fmt.Sprintf("store=%t", withStore), func(t *testing.T) {
			fx := newFixture(c.DefaultLimits(), withStore)
			require.NoError(t, fx.table.CreateFile(fx.root, "f", readWrite))

			for _, offset := range []int64{math.MaxInt64, math.MaxInt64 - 1, math.MaxInt64 - 3} {
				n, err := fx.table.WriteFile(fx.root, "f", []byte("abc"), offset)
				assert.ErrorIsf(t, err, errors.ErrNoSpaceOnDevice, "offset %d", offset)
				assert.Equal(t, 0, n)
			}
			assert.EqualValues(t, 0, fx.allocator.Used())
			assert.EqualValues(t, 0, fx.root.Lookup("f").Size())
		})
	}
}

func TestWrite__EmptyPastMaxFileSize(t *testing.T) {
	for _, withStore := range []bool{false, true} {
		t.Run(fmt.Sprintf("store=%t", withStore), func(t *testing.T) {
			fx := newFixture(c.DefaultLimits(), withStore)
			require.NoError(t, fx.table.CreateFile(fx.root, "f", readWrite))

			for _, offset := range []int64{c.DefaultMaxFileSize + 1, math.MaxInt64} {
				n, err := fx.table.WriteFile(fx.root, "f", nil, offset)
				assert.ErrorIsf(t, err, errors.ErrNoSpaceOnDevice, "offset %d", offset)
				assert.Equal(t, 0, n)
			}
			assert.EqualValues(t, 0, fx.allocator.Used())
			assert.EqualValues(t, 0, fx.root.Lookup("f").Size())
		})
	}
}

func TestPermissions__Read(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	require.NoError(t, fx.table.CreateFile(fx.root, "secret", tree.Permissions{Write: true}))

	_, err := fx.table.WriteFile(fx.root, "secret", make([]byte, 10), 0)
	require.NoError(t, err)

	for _, offset := range []int64{0, 5, 10, 1000, -1} {
		n, err := fx.table.ReadFile(fx.root, "secret", make([]byte, 4), offset)
		assert.ErrorIsf(t, err, errors.ErrPermissionDenied, "offset %d", offset)
		assert.Equal(t, 0, n)
	}
}

func TestPermissions__Write(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	require.NoError(t, fx.table.CreateFile(fx.root, "frozen", tree.Permissions{Read: true}))

	n, err := fx.table.WriteFile(fx.root, "frozen", make([]byte, 10), 0)
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
	assert.Equal(t, 0, n)
	assert.EqualValues(t, 0, fx.allocator.Used())
}

func TestLookup__NotAFile(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	require.NoError(t, fx.tree.CreateDirectory("/docs"))

	_, err := fx.table.ReadFile(fx.root, "docs", make([]byte, 1), 0)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = fx.table.WriteFile(fx.root, "docs", make([]byte, 1), 0)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	_, err = fx.table.ReadFile(fx.root, "missing", make([]byte, 1), 0)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestNegativeOffset(t *testing.T) {
	fx := newFixture(c.DefaultLimits(), false)
	require.NoError(t, fx.table.CreateFile(fx.root, "f", readWrite))

	_, err := fx.table.WriteFile(fx.root, "f", []byte{1}, -1)
	assert.ErrorIs(t, err, errors.ErrArgumentOutOfRange)

	_, err = fx.table.ReadFile(fx.root, "f", []byte{1}, -1)
	assert.ErrorIs(t, err, errors.ErrArgumentOutOfRange)
}

func TestStore__RoundTrip(t *testing.T) {
	fx := newFixture(smallLimits(), true)
	require.True(t, fx.table.HasStore())
	require.NoError(t, fx.table.CreateFile(fx.root, "f", readWrite))

	data := qtest.CreateRandomData(40, t)
	n, err := fx.table.WriteFile(fx.root, "f", data, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	readBack := make([]byte, 40)
	n, err = fx.table.ReadFile(fx.root, "f", readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, 40, n)
	assert.Equal(t, data, readBack)

	// Unaligned read straddling a block boundary, clamped at the end of the file.
	readBack = make([]byte, 30)
	n, err = fx.table.ReadFile(fx.root, "f", readBack, 14)
	require.NoError(t, err)
	assert.Equal(t, 26, n)
	assert.Equal(t, data[14:], readBack[:26])
}

func TestStore__OverwritePreservesNeighbors(t *testing.T) {
	fx := newFixture(smallLimits(), true)
	require.NoError(t, fx.table.CreateFile(fx.root, "f", readWrite))

	data := qtest.CreateRandomData(48, t)
	_, err := fx.table.WriteFile(fx.root, "f", data, 0)
	require.NoError(t, err)

	_, err = fx.table.WriteFile(fx.root, "f", []byte{0xAA, 0xBB, 0xCC}, 15)
	require.NoError(t, err)
	copy(data[15:], []byte{0xAA, 0xBB, 0xCC})

	readBack := make([]byte, 48)
	_, err = fx.table.ReadFile(fx.root, "f", readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, data, readBack)
}

func TestStore__GapReadsAsZeroes(t *testing.T) {
	fx := newFixture(smallLimits(), true)
	require.NoError(t, fx.table.CreateFile(fx.root, "f", readWrite))

	_, err := fx.table.WriteFile(fx.root, "f", []byte{9, 9}, 20)
	require.NoError(t, err)
	assert.EqualValues(t, 22, fx.root.Lookup("f").Size())

	readBack := make([]byte, 22)
	n, err := fx.table.ReadFile(fx.root, "f", readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, 22, n)
	assert.Equal(t, append(make([]byte, 20), 9, 9), readBack)
}

func TestStore__FilesDontOverlap(t *testing.T) {
	fx := newFixture(smallLimits(), true)
	require.NoError(t, fx.table.CreateFile(fx.root, "a", readWrite))
	require.NoError(t, fx.table.CreateFile(fx.root, "b", readWrite))

	// Interleave growth so the two files' blocks alternate.
	dataA := qtest.CreateRandomData(32, t)
	dataB := qtest.CreateRandomData(32, t)
	for i := 0; i < 32; i += 16 {
		_, err := fx.table.WriteFile(fx.root, "a", dataA[i:i+16], int64(i))
		require.NoError(t, err)
		_, err = fx.table.WriteFile(fx.root, "b", dataB[i:i+16], int64(i))
		require.NoError(t, err)
	}

	assert.Equal(t, []c.PhysicalBlock{0, 2}, fx.root.Lookup("a").File().Blocks)
	assert.Equal(t, []c.PhysicalBlock{1, 3}, fx.root.Lookup("b").File().Blocks)

	readBack := make([]byte, 32)
	_, err := fx.table.ReadFile(fx.root, "a", readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, dataA, readBack)

	_, err = fx.table.ReadFile(fx.root, "b", readBack, 0)
	require.NoError(t, err)
	assert.Equal(t, dataB, readBack)
}
