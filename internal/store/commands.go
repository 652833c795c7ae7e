package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrCommandNotFound is returned when a command id does not exist.
var ErrCommandNotFound = errors.New("store: command not found")

// ErrTreeTooDeep guards tree inserts against pathological nesting.
var ErrTreeTooDeep = errors.New("store: command tree exceeds maximum depth")

const maxCommandDepth = 8

// InsertCommandTree persists nested command literals for an outlet. Nodes are
// inserted top-down in caller order so each child references its just-created
// parent. Nodes with empty command_text are skipped, subtree included.
// Returns the ids of the inserted root commands.
func (s *SQLiteStore) InsertCommandTree(outletName string, nodes []CommandNode) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var rootIDs []int64
	for _, node := range nodes {
		id, err := insertCommandNode(tx, outletName, node, nil, 1)
		if err != nil {
			return nil, err
		}
		if id != 0 {
			rootIDs = append(rootIDs, id)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit command tree: %w", err)
	}
	return rootIDs, nil
}

func insertCommandNode(tx *sql.Tx, outletName string, node CommandNode, parentID *int64, depth int) (int64, error) {
	if depth > maxCommandDepth {
		return 0, ErrTreeTooDeep
	}
	if node.CommandText == "" {
		return 0, nil
	}

	res, err := tx.Exec(
		"INSERT INTO outlet_commands (outlet_name, command_text, parent_command_id) VALUES (?, ?, ?)",
		outletName, node.CommandText, parentID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert command: %w", err)
	}
	commandID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get command id: %w", err)
	}

	for _, slotName := range node.Slots {
		_, err := tx.Exec(
			"INSERT INTO outlet_command_slots (command_id, slot_name, required) VALUES (?, ?, ?)",
			commandID, slotName, true,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert slot %q: %w", slotName, err)
		}
	}

	for _, sub := range node.Subcommands {
		if _, err := insertCommandNode(tx, outletName, sub, &commandID, depth+1); err != nil {
			return 0, err
		}
	}
	return commandID, nil
}

// ChildrenOf lists the commands under parentID (root commands when nil) for
// an outlet, with slots and images attached.
func (s *SQLiteStore) ChildrenOf(outletName string, parentID *int64) ([]Command, error) {
	var rows *sql.Rows
	var err error
	if parentID == nil {
		rows, err = s.db.Query(
			"SELECT command_id, outlet_name, command_text, parent_command_id FROM outlet_commands WHERE outlet_name = ? AND parent_command_id IS NULL ORDER BY command_id",
			outletName,
		)
	} else {
		rows, err = s.db.Query(
			"SELECT command_id, outlet_name, command_text, parent_command_id FROM outlet_commands WHERE outlet_name = ? AND parent_command_id = ? ORDER BY command_id",
			outletName, *parentID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var cmd Command
		var parent sql.NullInt64
		if err := rows.Scan(&cmd.CommandID, &cmd.OutletName, &cmd.CommandText, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan command row: %w", err)
		}
		if parent.Valid {
			cmd.ParentCommandID = &parent.Int64
		}
		commands = append(commands, cmd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate command rows: %w", err)
	}

	for i := range commands {
		if commands[i].Slots, err = s.slotsForCommand(commands[i].CommandID); err != nil {
			return nil, err
		}
		if commands[i].Images, err = s.imagesForCommand(commands[i].CommandID); err != nil {
			return nil, err
		}
	}
	return commands, nil
}

// RootCommands lists an outlet's root commands ordered by text.
func (s *SQLiteStore) RootCommands(outletName string) ([]Command, error) {
	rows, err := s.db.Query(
		"SELECT command_id, outlet_name, command_text FROM outlet_commands WHERE outlet_name = ? AND parent_command_id IS NULL ORDER BY command_text",
		outletName,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query root commands: %w", err)
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var cmd Command
		if err := rows.Scan(&cmd.CommandID, &cmd.OutletName, &cmd.CommandText); err != nil {
			return nil, fmt.Errorf("failed to scan root command row: %w", err)
		}
		commands = append(commands, cmd)
	}
	return commands, rows.Err()
}

// CommandByID fetches a single command without slots or images.
func (s *SQLiteStore) CommandByID(commandID int64) (*Command, error) {
	var cmd Command
	var parent sql.NullInt64
	err := s.db.QueryRow(
		"SELECT command_id, outlet_name, command_text, parent_command_id FROM outlet_commands WHERE command_id = ?",
		commandID,
	).Scan(&cmd.CommandID, &cmd.OutletName, &cmd.CommandText, &parent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCommandNotFound
		}
		return nil, fmt.Errorf("failed to query command: %w", err)
	}
	if parent.Valid {
		cmd.ParentCommandID = &parent.Int64
	}
	return &cmd, nil
}

// IsLeaf reports whether a command has no subcommands.
func (s *SQLiteStore) IsLeaf(commandID int64) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM outlet_commands WHERE parent_command_id = ?", commandID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count subcommands: %w", err)
	}
	return count == 0, nil
}

// DeleteCommand removes a command; its subtree, slots and images go with it
// via the foreign-key cascades.
func (s *SQLiteStore) DeleteCommand(commandID int64) error {
	res, err := s.db.Exec("DELETE FROM outlet_commands WHERE command_id = ?", commandID)
	if err != nil {
		return fmt.Errorf("failed to delete command: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrCommandNotFound
	}
	return nil
}

// RequiredSlots lists the slots a command needs filled before it is ready.
func (s *SQLiteStore) RequiredSlots(commandID int64) ([]Slot, error) {
	rows, err := s.db.Query(
		"SELECT slot_id, command_id, slot_name, required FROM outlet_command_slots WHERE command_id = ? AND required = TRUE",
		commandID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query required slots: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

func (s *SQLiteStore) slotsForCommand(commandID int64) ([]Slot, error) {
	rows, err := s.db.Query(
		"SELECT slot_id, command_id, slot_name, required FROM outlet_command_slots WHERE command_id = ?",
		commandID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()
	return scanSlots(rows)
}

func scanSlots(rows *sql.Rows) ([]Slot, error) {
	var slots []Slot
	for rows.Next() {
		var slot Slot
		if err := rows.Scan(&slot.SlotID, &slot.CommandID, &slot.SlotName, &slot.Required); err != nil {
			return nil, fmt.Errorf("failed to scan slot row: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// AddSlots attaches slots to an existing command.
func (s *SQLiteStore) AddSlots(commandID int64, slots []SlotSpec) error {
	if _, err := s.CommandByID(commandID); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, spec := range slots {
		_, err := tx.Exec(
			"INSERT INTO outlet_command_slots (command_id, slot_name, required) VALUES (?, ?, ?)",
			commandID, spec.SlotName, spec.Required,
		)
		if err != nil {
			return fmt.Errorf("failed to insert slot %q: %w", spec.SlotName, err)
		}
	}
	return tx.Commit()
}

// DeleteSlots removes slots by id in one statement; returns the count removed.
func (s *SQLiteStore) DeleteSlots(slotIDs []int64) (int64, error) {
	if len(slotIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(slotIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(slotIDs))
	for i, id := range slotIDs {
		args[i] = id
	}
	res, err := s.db.Exec("DELETE FROM outlet_command_slots WHERE slot_id IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete slots: %w", err)
	}
	count, _ := res.RowsAffected()
	return count, nil
}

func (s *SQLiteStore) imagesForCommand(commandID int64) ([]CommandImage, error) {
	rows, err := s.db.Query(
		"SELECT image_id, command_id, image_url FROM outlet_command_images WHERE command_id = ? ORDER BY image_id",
		commandID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query command images: %w", err)
	}
	defer rows.Close()

	var images []CommandImage
	for rows.Next() {
		var img CommandImage
		if err := rows.Scan(&img.ImageID, &img.CommandID, &img.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// AttachCommandImage adds an image URL to a command.
func (s *SQLiteStore) AttachCommandImage(commandID int64, imageURL string) (int64, error) {
	if _, err := s.CommandByID(commandID); err != nil {
		return 0, err
	}
	res, err := s.db.Exec(
		"INSERT INTO outlet_command_images (command_id, image_url) VALUES (?, ?)",
		commandID, imageURL,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to attach image: %w", err)
	}
	return res.LastInsertId()
}

// DetachCommandImage removes a single command image.
func (s *SQLiteStore) DetachCommandImage(imageID int64) error {
	res, err := s.db.Exec("DELETE FROM outlet_command_images WHERE image_id = ?", imageID)
	if err != nil {
		return fmt.Errorf("failed to detach image: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrImageNotFound
	}
	return nil
}
