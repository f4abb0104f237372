package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/tasklane/apiserver/types"
)

var taskHeader = []string{"id", "title", "description", "status"}

// TaskRepository stores tasks in a CSV file with the header
// id,title,description,status. The file is the store: every call re-reads
// it, and every mutation replaces it atomically (temp file + rename).
//
// Writers are serialised by a mutex. The highest id ever assigned is kept in
// a sidecar "<path>.seq" file so deleted ids are never handed out again.
type TaskRepository struct {
	path    string
	seqPath string
	mu      sync.RWMutex
}

func NewTaskRepository(path string) *TaskRepository {
	return &TaskRepository{
		path:    path,
		seqPath: path + ".seq",
	}
}

// Path returns the location of the backing file.
func (r *TaskRepository) Path() string {
	return r.path
}

// List returns every task in file order. A missing file is an empty store.
func (r *TaskRepository) List(ctx context.Context) ([]types.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.readAll()
}

func (r *TaskRepository) Get(ctx context.Context, id int) (types.Task, error) {
	tasks, err := r.List(ctx)
	if err != nil {
		return types.Task{}, err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return types.Task{}, ErrNotFound
	}
	return tasks[idx], nil
}

// Create appends a task with the next id: one past the larger of the highest
// id in the file and the highest id ever assigned.
func (r *TaskRepository) Create(ctx context.Context, fields types.TaskFields) (types.Task, error) {
	if err := ctx.Err(); err != nil {
		return types.Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.readAll()
	if err != nil {
		return types.Task{}, err
	}
	last, err := r.readSeq()
	if err != nil {
		return types.Task{}, err
	}

	task := types.Task{
		ID:          max(last, maxID(tasks)) + 1,
		Title:       fields.Title,
		Description: fields.Description,
		Status:      fields.Status,
	}

	// Persist the sequence first: a crash between the two writes burns an id
	// instead of reusing one.
	if err := r.writeSeq(task.ID); err != nil {
		return types.Task{}, err
	}
	if err := r.writeAll(append(tasks, task)); err != nil {
		return types.Task{}, err
	}
	return task, nil
}

// Update merges the set fields of update into the task with the given id,
// keeping its position in the file.
func (r *TaskRepository) Update(ctx context.Context, id int, update types.TaskUpdate) (types.Task, error) {
	if err := ctx.Err(); err != nil {
		return types.Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.readAll()
	if err != nil {
		return types.Task{}, err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return types.Task{}, ErrNotFound
	}

	tasks[idx] = update.Apply(tasks[idx])
	if err := r.writeAll(tasks); err != nil {
		return types.Task{}, err
	}
	return tasks[idx], nil
}

// Delete removes the task with the given id and returns it. The file is left
// untouched when the id does not exist.
func (r *TaskRepository) Delete(ctx context.Context, id int) (types.Task, error) {
	if err := ctx.Err(); err != nil {
		return types.Task{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tasks, err := r.readAll()
	if err != nil {
		return types.Task{}, err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return types.Task{}, ErrNotFound
	}

	removed := tasks[idx]
	if err := r.writeAll(slices.Delete(tasks, idx, idx+1)); err != nil {
		return types.Task{}, err
	}
	return removed, nil
}

// Export writes the current store contents to w in the on-disk format.
func (r *TaskRepository) Export(ctx context.Context, w io.Writer) error {
	tasks, err := r.List(ctx)
	if err != nil {
		return err
	}
	return encodeTasks(w, tasks)
}

// Import replaces the whole store with the tasks read from src and returns
// how many were loaded. src is fully validated before anything is written.
func (r *TaskRepository) Import(ctx context.Context, src io.Reader) (int, error) {
	tasks, err := decodeTasks(src)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	last, err := r.readSeq()
	if err != nil {
		return 0, err
	}
	if top := maxID(tasks); top > last {
		if err := r.writeSeq(top); err != nil {
			return 0, err
		}
	}
	if err := r.writeAll(tasks); err != nil {
		return 0, err
	}
	return len(tasks), nil
}

func (r *TaskRepository) readAll() ([]types.Task, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []types.Task{}, nil
		}
		return nil, fmt.Errorf("open task file: %w", err)
	}
	defer f.Close()

	tasks, err := decodeTasks(f)
	if err != nil {
		return nil, fmt.Errorf("read task file %s: %w", r.path, err)
	}
	return tasks, nil
}

func (r *TaskRepository) writeAll(tasks []types.Task) error {
	var buf bytes.Buffer
	if err := encodeTasks(&buf, tasks); err != nil {
		return err
	}
	if err := writeFileAtomic(r.path, buf.Bytes()); err != nil {
		return fmt.Errorf("write task file: %w", err)
	}
	return nil
}

func (r *TaskRepository) readSeq() (int, error) {
	data, err := os.ReadFile(r.seqPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read task sequence: %w", err)
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, nil
	}
	seq, err := strconv.Atoi(raw)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("invalid task sequence %q", raw)
	}
	return seq, nil
}

func (r *TaskRepository) writeSeq(seq int) error {
	if err := writeFileAtomic(r.seqPath, []byte(strconv.Itoa(seq)+"\n")); err != nil {
		return fmt.Errorf("write task sequence: %w", err)
	}
	return nil
}

func decodeTasks(src io.Reader) ([]types.Task, error) {
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = len(taskHeader)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []types.Task{}, nil
		}
		return nil, err
	}
	if !slices.Equal(header, taskHeader) {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	tasks := []types.Task{}
	seen := make(map[int]struct{})
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		id, err := strconv.Atoi(strings.TrimSpace(record[0]))
		if err != nil || id < 1 {
			return nil, fmt.Errorf("invalid task id %q", record[0])
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate task id %d", id)
		}
		seen[id] = struct{}{}

		tasks = append(tasks, types.Task{
			ID:          id,
			Title:       record[1],
			Description: record[2],
			Status:      record[3],
		})
	}
	return tasks, nil
}

func encodeTasks(w io.Writer, tasks []types.Task) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(taskHeader); err != nil {
		return err
	}
	for _, task := range tasks {
		if err := writer.Write([]string{
			strconv.Itoa(task.ID),
			task.Title,
			task.Description,
			task.Status,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// writeFileAtomic replaces path with data so readers see either the old or
// the new contents, never a partial file.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func indexOf(tasks []types.Task, id int) int {
	return slices.IndexFunc(tasks, func(t types.Task) bool { return t.ID == id })
}

func maxID(tasks []types.Task) int {
	top := 0
	for _, task := range tasks {
		top = max(top, task.ID)
	}
	return top
}
