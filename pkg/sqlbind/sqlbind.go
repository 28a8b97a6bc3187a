// Package sqlbind exposes the client's entry points as SQLite functions.
//
// Register installs a go-sqlite3 driver whose connections carry the mr_*
// functions. Table-valued results are returned as JSON arrays of objects, so
// a query reads them row by row through json_each:
//
//	SELECT json_extract(value, '$.dst'), json_extract(value, '$.score')
//	FROM json_each(mr_scores('U1', 0, NULL, NULL, NULL, NULL, NULL, NULL, NULL, NULL));
//
// A NULL argument means the optional value is omitted. An empty or NULL
// context reads the aggregate and writes the default bucket.
package sqlbind

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/rmax-ai/scorelink/pkg/client"
	"github.com/rmax-ai/scorelink/pkg/protocol"
)

// Ok is returned by functions that only acknowledge.
const Ok = "Ok"

// Register installs a database/sql driver called driverName backed by
// SQLite, with every mr_* function bound to c. It panics if driverName is
// already registered, as sql.Register does.
func Register(driverName string, c *client.Client) {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return Bind(conn, c)
		},
	})
}

// Open registers a driver for c under driverName and opens dsn with it.
func Open(driverName, dsn string, c *client.Client) (*sql.DB, error) {
	Register(driverName, c)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}
	return db, nil
}

type binding struct {
	c *client.Client
}

// Bind registers the mr_* functions on one connection.
func Bind(conn *sqlite3.SQLiteConn, c *client.Client) error {
	b := binding{c: c}
	funcs := []struct {
		name string
		impl any
		pure bool
	}{
		{"mr_service_url", b.serviceURL, true},
		{"mr_connector", b.connector, true},
		{"mr_service", b.service, false},
		{"mr_node_score", b.nodeScore, false},
		{"mr_node_score_superposition", b.nodeScoreSuperposition, false},
		{"mr_node_score_linear_sum", b.nodeScoreLinearSum, false},
		{"mr_scores", b.scores, false},
		{"mr_scores_superposition", b.scoresSuperposition, false},
		{"mr_scores_linear_sum", b.scoresLinearSum, false},
		{"mr_for_beacons_global", b.forBeaconsGlobal, false},
		{"mr_graph", b.graph, false},
		{"mr_nodes", b.nodes, false},
		{"mr_nodelist", b.nodeList, false},
		{"mr_edgelist", b.edgeList, false},
		{"mr_connected", b.connected, false},
		{"mr_mutual_scores", b.mutualScores, false},
		{"mr_put_edge", b.putEdge, false},
		{"mr_delete_edge", b.deleteEdge, false},
		{"mr_delete_node", b.deleteNode, false},
		{"mr_reset", b.reset, false},
		{"mr_zerorec", b.zeroRec, false},
		{"mr_sync", b.sync, false},
		{"mr_log_level", b.logLevel, false},
	}
	for _, f := range funcs {
		if err := conn.RegisterFunc(f.name, f.impl, f.pure); err != nil {
			return fmt.Errorf("failed to register %s: %w", f.name, err)
		}
	}
	return nil
}

// SQLite functions carry no context of their own.
func (b binding) ctx() context.Context { return context.Background() }

func (b binding) serviceURL() string { return b.c.ServiceURL() }

func (b binding) connector() string { return b.c.ConnectorVersion() }

// service reports the engine version, or the failure text when unreachable.
func (b binding) service() string {
	v, err := b.c.Ping(b.ctx())
	if err != nil {
		return err.Error()
	}
	return v
}

func (b binding) nodeScore(src, dst string, ctx any) (string, error) {
	return rows(b.c.NodeScore(b.ctx(), src, dst, readTarget(ctx)))
}

func (b binding) nodeScoreSuperposition(src, dst string) (string, error) {
	return rows(b.c.NodeScore(b.ctx(), src, dst, protocol.Aggregate()))
}

func (b binding) forBeaconsGlobal() (string, error) {
	return rows(b.c.ForBeaconsGlobal(b.ctx()))
}

func (b binding) nodeScoreLinearSum(src, dst string) (string, error) {
	return rows(b.c.NodeScoreLinearSum(b.ctx(), src, dst))
}

func (b binding) scores(ego string, hidePersonal, ctx, startWith, lt, lte, gt, gte, index, count any) (string, error) {
	opts := client.ScoresOptions{Context: readTarget(ctx)}
	var err error
	if opts.HidePersonal, err = optBool(hidePersonal); err != nil {
		return "", err
	}
	if err := scoreRange(&opts, startWith, lt, lte, gt, gte); err != nil {
		return "", err
	}
	if opts.Index, err = optUint(index); err != nil {
		return "", err
	}
	if opts.Count, err = optUint(count); err != nil {
		return "", err
	}
	return rows(b.c.Scores(b.ctx(), ego, opts))
}

// scoresSuperposition is the aggregate score list with personal nodes shown.
func (b binding) scoresSuperposition(ego string, startWith, lt, lte, gt, gte, limit any) (string, error) {
	opts := client.ScoresOptions{Context: protocol.Aggregate()}
	if err := scoreRange(&opts, startWith, lt, lte, gt, gte); err != nil {
		return "", err
	}
	var err error
	if opts.Count, err = optUint(limit); err != nil {
		return "", err
	}
	return rows(b.c.Scores(b.ctx(), ego, opts))
}

func scoreRange(opts *client.ScoresOptions, startWith, lt, lte, gt, gte any) error {
	opts.Prefix = optString(startWith)
	for _, f := range []struct {
		dst **float64
		v   any
	}{{&opts.Lt, lt}, {&opts.Lte, lte}, {&opts.Gt, gt}, {&opts.Gte, gte}} {
		var err error
		if *f.dst, err = optFloat(f.v); err != nil {
			return err
		}
	}
	return nil
}

func (b binding) scoresLinearSum(src string) (string, error) {
	return rows(b.c.ScoresLinearSum(b.ctx(), src))
}

func (b binding) graphOpts(ctx, positiveOnly, index, count any) (client.GraphOptions, error) {
	opts := client.GraphOptions{Context: readTarget(ctx)}
	var err error
	if opts.PositiveOnly, err = optBool(positiveOnly); err != nil {
		return opts, err
	}
	if opts.Index, err = optUint(index); err != nil {
		return opts, err
	}
	if opts.Count, err = optUint(count); err != nil {
		return opts, err
	}
	return opts, nil
}

func (b binding) graph(ego, focus string, ctx, positiveOnly, index, count any) (string, error) {
	opts, err := b.graphOpts(ctx, positiveOnly, index, count)
	if err != nil {
		return "", err
	}
	return rows(b.c.Graph(b.ctx(), ego, focus, opts))
}

func (b binding) nodes(ego, focus string, ctx, positiveOnly, index, count any) (string, error) {
	opts, err := b.graphOpts(ctx, positiveOnly, index, count)
	if err != nil {
		return "", err
	}
	return rows(b.c.GravityNodes(b.ctx(), ego, focus, opts))
}

type nodeRow struct {
	Node string `json:"node"`
}

func (b binding) nodeList(ctx any) (string, error) {
	ids, err := b.c.NodeList(b.ctx(), readTarget(ctx))
	if err != nil {
		return "", err
	}
	out := make([]nodeRow, 0, len(ids))
	for _, id := range ids {
		out = append(out, nodeRow{Node: id})
	}
	return rows(out, nil)
}

func (b binding) edgeList(ctx any) (string, error) {
	return rows(b.c.EdgeList(b.ctx(), readTarget(ctx)))
}

func (b binding) connected(src string, ctx any) (string, error) {
	return rows(b.c.Connected(b.ctx(), src, readTarget(ctx)))
}

func (b binding) mutualScores(src string, ctx any) (string, error) {
	return rows(b.c.MutualScores(b.ctx(), src, readTarget(ctx)))
}

func (b binding) putEdge(src, dst string, weight, ctx any) (string, error) {
	w, err := optFloat(weight)
	if err != nil {
		return "", err
	}
	if w == nil {
		return "", fmt.Errorf("weight is required")
	}
	edge, err := b.c.PutEdge(b.ctx(), src, dst, *w, writeTarget(ctx))
	if err != nil {
		return "", err
	}
	return rows([]client.EdgeRecord{edge}, nil)
}

func (b binding) deleteEdge(src, dst string, ctx any) (string, error) {
	return ack(b.c.DeleteEdge(b.ctx(), src, dst, writeTarget(ctx)))
}

func (b binding) deleteNode(src string, ctx any) (string, error) {
	return ack(b.c.DeleteNode(b.ctx(), src, writeTarget(ctx)))
}

func (b binding) reset() (string, error) { return ack(b.c.Reset(b.ctx())) }

func (b binding) zeroRec() (string, error) { return ack(b.c.RecomputeZero(b.ctx())) }

func (b binding) sync(timeoutMS any) (string, error) {
	ms, err := optUint(timeoutMS)
	if err != nil {
		return "", err
	}
	var timeout time.Duration
	if ms != nil {
		timeout = time.Duration(*ms) * time.Millisecond
	}
	return ack(b.c.Synchronize(b.ctx(), timeout))
}

func (b binding) logLevel(level int64) (string, error) {
	if level < 0 {
		return "", fmt.Errorf("log level must be non-negative, got %d", level)
	}
	return ack(b.c.SetLogLevel(b.ctx(), uint32(level)))
}

func rows[T any](v []T, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if v == nil {
		v = []T{}
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	return string(out), nil
}

func ack(err error) (string, error) {
	if err != nil {
		return "", err
	}
	return Ok, nil
}

// Optional argument decoding. go-sqlite3 passes NULL to an interface
// parameter as a nil []byte.

func isNull(v any) bool {
	if v == nil {
		return true
	}
	b, ok := v.([]byte)
	return ok && b == nil
}

func optString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func readTarget(v any) protocol.ReadTarget {
	if name := optString(v); name != "" {
		return protocol.ReadFrom(name)
	}
	return protocol.Aggregate()
}

func writeTarget(v any) protocol.WriteTarget {
	if name := optString(v); name != "" {
		return protocol.WriteTo(name)
	}
	return protocol.DefaultBucket()
}

func optBool(v any) (bool, error) {
	if isNull(v) {
		return false, nil
	}
	switch x := v.(type) {
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(x))
	}
	return false, fmt.Errorf("expected boolean, got %T", v)
}

func optFloat(v any) (*float64, error) {
	if isNull(v) {
		return nil, nil
	}
	switch x := v.(type) {
	case int64:
		return protocol.Float(float64(x)), nil
	case float64:
		return protocol.Float(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, fmt.Errorf("expected number: %w", err)
		}
		return protocol.Float(f), nil
	}
	return nil, fmt.Errorf("expected number, got %T", v)
}

func optUint(v any) (*uint32, error) {
	if isNull(v) {
		return nil, nil
	}
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case float64:
		n = int64(x)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		n = parsed
	default:
		return nil, fmt.Errorf("expected integer, got %T", v)
	}
	if n < 0 || n > int64(protocol.DefaultCount) {
		return nil, fmt.Errorf("integer out of range: %d", n)
	}
	return protocol.Uint(uint32(n)), nil
}
