package tracing

import (
	"database/sql"
	"os"
	"path/filepath"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

// SQLiteTraceWriter is a writer that writes trace data to a SQLite database.
// Tasks are buffered and written in batches. The buffer is also flushed when
// the program exits through atexit.
type SQLiteTraceWriter struct {
	*sql.DB

	taskStatement *sql.Stmt
	stepStatement *sql.Stmt

	path      string
	tasks     []Task
	batchSize int
}

// NewSQLiteTraceWriter creates a new SQLiteTraceWriter. If path is empty, a
// file with a unique name is created in the working directory.
func NewSQLiteTraceWriter(path string) *SQLiteTraceWriter {
	w := &SQLiteTraceWriter{
		path:      path,
		batchSize: 10000,
	}

	atexit.Register(func() {
		if err := w.Flush(); err != nil {
			log.WithError(err).Error("flushing trace")
		}
	})

	return w
}

// Path returns the database file the writer writes into.
func (w *SQLiteTraceWriter) Path() string {
	return w.path
}

// Init creates the database file and its tables.
func (w *SQLiteTraceWriter) Init() error {
	if w.path == "" {
		w.path = "spikerx_trace_" + xid.New().String() + ".sqlite3"
	}

	if _, err := os.Stat(w.path); err == nil {
		return errors.Errorf("file %s already exists", w.path)
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return errors.Wrap(err, "creating trace directory")
	}

	db, err := sql.Open("sqlite3", w.path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", w.path)
	}
	w.DB = db

	log.WithField("path", w.path).Info("collecting trace")

	if err := w.createTables(); err != nil {
		return err
	}

	return w.prepareStatements()
}

func (w *SQLiteTraceWriter) createTables() error {
	queries := []string{
		`create table trace
		(
			task_id    varchar(200) not null,
			parent_id  varchar(200),
			kind       varchar(100),
			what       varchar(100),
			location   varchar(100),
			start_time float not null,
			end_time   float default 0
		);`,
		`create index trace_task_id_index on trace (task_id);`,
		`create index trace_kind_index on trace (kind);`,
		`create index trace_location_index on trace (location);`,
		`create table step
		(
			task_id varchar(200) not null,
			time    float not null,
			what    varchar(100)
		);`,
		`create index step_task_id_index on step (task_id);`,
	}

	for _, q := range queries {
		if _, err := w.Exec(q); err != nil {
			return errors.Wrapf(err, "executing %q", q)
		}
	}

	return nil
}

func (w *SQLiteTraceWriter) prepareStatements() error {
	var err error

	w.taskStatement, err = w.Prepare(
		`INSERT INTO trace VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing trace statement")
	}

	w.stepStatement, err = w.Prepare(`INSERT INTO step VALUES (?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing step statement")
	}

	return nil
}

// Write buffers a finished task.
func (w *SQLiteTraceWriter) Write(task Task) error {
	w.tasks = append(w.tasks, task)
	if len(w.tasks) >= w.batchSize {
		return w.Flush()
	}

	return nil
}

// Flush writes all the buffered tasks to the database.
func (w *SQLiteTraceWriter) Flush() error {
	if len(w.tasks) == 0 || w.DB == nil {
		return nil
	}

	tx, err := w.Begin()
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	for _, task := range w.tasks {
		if err := w.insert(tx, task); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	w.tasks = nil

	return errors.Wrap(tx.Commit(), "committing trace")
}

func (w *SQLiteTraceWriter) insert(tx *sql.Tx, task Task) error {
	_, err := tx.Stmt(w.taskStatement).Exec(
		task.ID,
		task.ParentID,
		task.Kind,
		task.What,
		task.Where,
		float64(task.StartTime),
		float64(task.EndTime),
	)
	if err != nil {
		return errors.Wrapf(err, "inserting task %s", task.ID)
	}

	for _, step := range task.Steps {
		_, err := tx.Stmt(w.stepStatement).Exec(
			task.ID, float64(step.Time), step.What)
		if err != nil {
			return errors.Wrapf(err, "inserting step of task %s", task.ID)
		}
	}

	return nil
}

// Close flushes the buffer and closes the database.
func (w *SQLiteTraceWriter) Close() error {
	if w.DB == nil {
		return nil
	}

	if err := w.Flush(); err != nil {
		return err
	}

	return w.DB.Close()
}

// SQLiteTraceReader is a reader that reads trace data from a SQLite database.
type SQLiteTraceReader struct {
	*sql.DB

	path string
}

// NewSQLiteTraceReader creates a new SQLiteTraceReader.
func NewSQLiteTraceReader(path string) *SQLiteTraceReader {
	return &SQLiteTraceReader{path: path}
}

// Init establishes a connection to the database.
func (r *SQLiteTraceReader) Init() error {
	db, err := sql.Open("sqlite3", r.path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", r.path)
	}

	r.DB = db

	return nil
}

// ListComponents returns the locations that appear in the trace.
func (r *SQLiteTraceReader) ListComponents() ([]string, error) {
	rows, err := r.Query(
		"SELECT DISTINCT location FROM trace ORDER BY location")
	if err != nil {
		return nil, errors.Wrap(err, "listing components")
	}
	defer rows.Close()

	var components []string
	for rows.Next() {
		var component string
		if err := rows.Scan(&component); err != nil {
			return nil, errors.Wrap(err, "scanning component")
		}
		components = append(components, component)
	}

	return components, rows.Err()
}

// CountTasks returns the number of tasks of the given kind.
func (r *SQLiteTraceReader) CountTasks(kind string) (int, error) {
	var n int

	err := r.QueryRow(
		"SELECT COUNT(*) FROM trace WHERE kind = ?", kind).Scan(&n)

	return n, errors.Wrapf(err, "counting %s tasks", kind)
}

// CountSteps returns how many times a step with the given name was reached.
func (r *SQLiteTraceReader) CountSteps(what string) (int, error) {
	var n int

	err := r.QueryRow(
		"SELECT COUNT(*) FROM step WHERE what = ?", what).Scan(&n)

	return n, errors.Wrapf(err, "counting %s steps", what)
}
