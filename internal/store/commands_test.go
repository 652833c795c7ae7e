package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertBookingTree(t *testing.T, s *SQLiteStore, outlet string) []int64 {
	t.Helper()
	rootIDs, err := s.InsertCommandTree(outlet, []CommandNode{
		{
			CommandText: "Book Table",
			Slots:       []string{"time"},
			Subcommands: []CommandNode{
				{CommandText: "Window Seat", Slots: []string{"party_size"}},
				{CommandText: "Terrace Seat", Slots: []string{"party_size"}},
			},
		},
		{CommandText: "Opening Hours"},
	})
	require.NoError(t, err)
	require.Len(t, rootIDs, 2)
	return rootIDs
}

func TestInsertCommandTreeAndChildren(t *testing.T) {
	s := setupTestStore(t)
	rootIDs := insertBookingTree(t, s, "cafe-central")

	roots, err := s.ChildrenOf("cafe-central", nil)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "Book Table", roots[0].CommandText)
	require.Len(t, roots[0].Slots, 1)
	assert.Equal(t, "time", roots[0].Slots[0].SlotName)
	assert.True(t, roots[0].Slots[0].Required)

	children, err := s.ChildrenOf("cafe-central", &rootIDs[0])
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "Window Seat", children[0].CommandText)
	assert.Equal(t, rootIDs[0], *children[0].ParentCommandID)

	// Another outlet sees nothing.
	other, err := s.ChildrenOf("other-outlet", nil)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestInsertCommandTreeSkipsEmptyText(t *testing.T) {
	s := setupTestStore(t)

	rootIDs, err := s.InsertCommandTree("cafe-central", []CommandNode{
		{CommandText: ""},
		{CommandText: "Real Command"},
	})
	require.NoError(t, err)
	assert.Len(t, rootIDs, 1)
}

func TestInsertCommandTreeDepthGuard(t *testing.T) {
	s := setupTestStore(t)

	node := CommandNode{CommandText: "level"}
	for i := 0; i < maxCommandDepth+1; i++ {
		node = CommandNode{CommandText: "level", Subcommands: []CommandNode{node}}
	}
	_, err := s.InsertCommandTree("cafe-central", []CommandNode{node})
	assert.ErrorIs(t, err, ErrTreeTooDeep)
}

func TestIsLeaf(t *testing.T) {
	s := setupTestStore(t)
	rootIDs := insertBookingTree(t, s, "cafe-central")

	leaf, err := s.IsLeaf(rootIDs[0])
	require.NoError(t, err)
	assert.False(t, leaf)

	leaf, err = s.IsLeaf(rootIDs[1])
	require.NoError(t, err)
	assert.True(t, leaf)
}

func TestDeleteCommandCascades(t *testing.T) {
	s := setupTestStore(t)
	rootIDs := insertBookingTree(t, s, "cafe-central")

	children, err := s.ChildrenOf("cafe-central", &rootIDs[0])
	require.NoError(t, err)
	require.Len(t, children, 2)

	require.NoError(t, s.DeleteCommand(rootIDs[0]))

	// Subtree and its slots are gone with the parent.
	children, err = s.ChildrenOf("cafe-central", &rootIDs[0])
	require.NoError(t, err)
	assert.Empty(t, children)

	var slotCount int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM outlet_command_slots").Scan(&slotCount))
	assert.Equal(t, 0, slotCount)

	assert.ErrorIs(t, s.DeleteCommand(rootIDs[0]), ErrCommandNotFound)
}

func TestRootCommandsOrderedByText(t *testing.T) {
	s := setupTestStore(t)
	insertBookingTree(t, s, "cafe-central")

	roots, err := s.RootCommands("cafe-central")
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, "Book Table", roots[0].CommandText)
	assert.Equal(t, "Opening Hours", roots[1].CommandText)
}

func TestRequiredSlots(t *testing.T) {
	s := setupTestStore(t)
	rootIDs := insertBookingTree(t, s, "cafe-central")

	require.NoError(t, s.AddSlots(rootIDs[1], []SlotSpec{
		{SlotName: "notes", Required: false},
		{SlotName: "date", Required: true},
	}))

	required, err := s.RequiredSlots(rootIDs[1])
	require.NoError(t, err)
	require.Len(t, required, 1)
	assert.Equal(t, "date", required[0].SlotName)
}

func TestAddAndDeleteSlots(t *testing.T) {
	s := setupTestStore(t)
	rootIDs := insertBookingTree(t, s, "cafe-central")

	assert.ErrorIs(t, s.AddSlots(99999, []SlotSpec{{SlotName: "x", Required: true}}), ErrCommandNotFound)

	require.NoError(t, s.AddSlots(rootIDs[1], []SlotSpec{
		{SlotName: "date", Required: true},
		{SlotName: "notes", Required: false},
	}))

	slots, err := s.slotsForCommand(rootIDs[1])
	require.NoError(t, err)
	require.Len(t, slots, 2)

	count, err := s.DeleteSlots([]int64{slots[0].SlotID, slots[1].SlotID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	count, err = s.DeleteSlots(nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCommandImages(t *testing.T) {
	s := setupTestStore(t)
	rootIDs := insertBookingTree(t, s, "cafe-central")

	imageID, err := s.AttachCommandImage(rootIDs[0], "https://cdn.example.com/table.jpg")
	require.NoError(t, err)

	roots, err := s.ChildrenOf("cafe-central", nil)
	require.NoError(t, err)
	require.Len(t, roots[0].Images, 1)
	assert.Equal(t, "https://cdn.example.com/table.jpg", roots[0].Images[0].ImageURL)

	require.NoError(t, s.DetachCommandImage(imageID))
	assert.ErrorIs(t, s.DetachCommandImage(imageID), ErrImageNotFound)

	_, err = s.AttachCommandImage(99999, "https://cdn.example.com/x.jpg")
	assert.ErrorIs(t, err, ErrCommandNotFound)
}
