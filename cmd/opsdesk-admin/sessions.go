package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
)

// Key layout owned by the redis session store adapter.
const sessionKeyPrefix = "session:"

type listSessionsOptions struct {
	UserID string
	Role   string
	Limit  int
}

type revokeSessionsOptions struct {
	UserID    string
	SessionID string
	All       bool
	DryRun    bool
	Yes       bool
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseListSessionsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	conns, err := connectInfra(&connectInfraOptions{
		Logger:       cmdCtx.Logger,
		Config:       &cmdCtx.Config,
		WantSessions: true,
	})
	if err != nil {
		return err
	}
	if conns.Sessions == nil {
		if writeErr := writeln(os.Stderr, "Session store Redis is not available"); writeErr != nil {
			return fmt.Errorf("print session store availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	resp, err := inspectSessions(&inspectSessionsRequest{
		Ctx:     ctx,
		Client:  conns.Sessions,
		Logger:  cmdCtx.Logger,
		Options: &opts,
	})
	if err != nil {
		return err
	}

	return printSessionEntries(resp, &opts)
}

func runRevokeSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseRevokeSessionsFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(sessionRevokeConfirmOptions{opts}, "revoke sessions"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	conns, err := connectInfra(&connectInfraOptions{
		Logger:       cmdCtx.Logger,
		Config:       &cmdCtx.Config,
		WantSessions: true,
	})
	if err != nil {
		return err
	}
	if conns.Sessions == nil {
		if writeErr := writeln(os.Stderr, "Session store Redis is not available"); writeErr != nil {
			return fmt.Errorf("print session store availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	stats, err := revokeSessionKeys(&sessionRevokeRequest{
		Ctx:      ctx,
		Client:   conns.Sessions,
		Logger:   cmdCtx.Logger,
		Options:  opts,
		BatchCap: 1000,
	})
	if err != nil {
		return err
	}

	if stats.total == 0 {
		if writeErr := writeln(os.Stdout, "No matching sessions found in Redis"); writeErr != nil {
			return fmt.Errorf("print session revoke summary: %w", writeErr)
		}
		return nil
	}

	if opts.DryRun {
		if writeErr := writef(os.Stdout, "Dry-run: would revoke %d/%d sessions\n", stats.deleted, stats.total); writeErr != nil {
			return fmt.Errorf("print session revoke dry run: %w", writeErr)
		}
		return nil
	}

	if writeErr := writef(os.Stdout, "Revoked %d/%d sessions\n", stats.deleted, stats.total); writeErr != nil {
		return fmt.Errorf("print session revoke summary: %w", writeErr)
	}
	if stats.failures > 0 {
		if writeErr := writef(os.Stdout, "Failed batches: %d\n", stats.failures); writeErr != nil {
			return fmt.Errorf("print session revoke failures: %w", writeErr)
		}
	}
	return nil
}

func parseListSessionsFlags(args []string) (listSessionsOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listSessionsOptions
	fs.StringVar(&opts.UserID, "user", "", "Filter by user ID")
	fs.StringVar(&opts.Role, "role", "", "Filter by role (manager|clerk|guest)")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum sessions to display (0 for unlimited)")

	if err := fs.Parse(args); err != nil {
		return listSessionsOptions{}, err
	}

	opts.UserID = strings.TrimSpace(opts.UserID)
	opts.Role = strings.ToLower(strings.TrimSpace(opts.Role))
	if opts.Role != "" && !domainauth.Role(opts.Role).Valid() {
		return listSessionsOptions{}, fmt.Errorf("invalid role %q", opts.Role)
	}
	if opts.Limit < 0 {
		return listSessionsOptions{}, errors.New("--limit must be >= 0")
	}

	return opts, nil
}

func parseRevokeSessionsFlags(args []string) (revokeSessionsOptions, error) {
	fs := flag.NewFlagSet("revoke-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts revokeSessionsOptions
	fs.StringVar(&opts.UserID, "user", "", "Revoke all sessions for this user ID")
	fs.StringVar(&opts.SessionID, "session", "", "Revoke a single session by ID")
	fs.BoolVar(&opts.All, "all", false, "Revoke every session")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return revokeSessionsOptions{}, err
	}

	opts.UserID = strings.TrimSpace(opts.UserID)
	opts.SessionID = strings.TrimSpace(opts.SessionID)
	if err := validateRevokeSessionsOptions(opts); err != nil {
		return revokeSessionsOptions{}, err
	}

	return opts, nil
}

func validateRevokeSessionsOptions(opts revokeSessionsOptions) error {
	selectors := 0
	if opts.UserID != "" {
		selectors++
	}
	if opts.SessionID != "" {
		selectors++
	}
	if opts.All {
		selectors++
	}
	if selectors != 1 {
		return errors.New("specify exactly one of --user, --session, or --all")
	}
	return nil
}

type sessionRevokeConfirmOptions struct {
	opts revokeSessionsOptions
}

func (s sessionRevokeConfirmOptions) IsDryRun() bool { return s.opts.DryRun }
func (s sessionRevokeConfirmOptions) IsYes() bool    { return s.opts.Yes }
func (s sessionRevokeConfirmOptions) GetWarning() string {
	return "WARNING: revoked users are signed out immediately."
}

func (s sessionRevokeConfirmOptions) GetTarget() string {
	switch {
	case s.opts.All:
		return ""
	case s.opts.SessionID != "":
		return fmt.Sprintf("session %q", s.opts.SessionID)
	default:
		return fmt.Sprintf("user %q", s.opts.UserID)
	}
}

type inspectSessionsRequest struct {
	Ctx     context.Context
	Client  redis.UniversalClient
	Logger  *slog.Logger
	Options *listSessionsOptions
}

type sessionEntry struct {
	Key     string
	Session domainauth.Session
	TTL     time.Duration
}

type inspectSessionsResponse struct {
	Entries []sessionEntry
	Total   int
}

func inspectSessions(req *inspectSessionsRequest) (inspectSessionsResponse, error) {
	if req == nil || req.Options == nil {
		return inspectSessionsResponse{}, nil
	}

	pattern := sessionKeyPrefix + "*"
	req.Logger.Info("scanning redis", "pattern", pattern)

	collector := sessionCollector{limit: req.Options.Limit}
	if err := collector.scanPattern(req, pattern); err != nil {
		return inspectSessionsResponse{}, err
	}
	return collector.result(), nil
}

type sessionCollector struct {
	entries []sessionEntry
	total   int
	limit   int
}

func (c *sessionCollector) scanPattern(req *inspectSessionsRequest, pattern string) error {
	if req == nil {
		return errors.New("inspect sessions request is required")
	}
	iter := req.Client.Scan(req.Ctx, 0, pattern, 1000).Iterator()
	for iter.Next(req.Ctx) {
		if err := c.addKey(req, iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *sessionCollector) addKey(req *inspectSessionsRequest, key string) error {
	if req == nil {
		return nil
	}

	payload, err := req.Client.Get(req.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SCAN and GET.
		return nil
	}
	if err != nil {
		return fmt.Errorf("get session key %q: %w", key, err)
	}

	var session domainauth.Session
	if decodeErr := json.Unmarshal([]byte(payload), &session); decodeErr != nil {
		req.Logger.Warn("skipping session key", "key", key, "error", decodeErr)
		return nil
	}
	if !sessionMatchesFilters(session, req.Options) {
		return nil
	}

	c.total++
	if c.limit > 0 && len(c.entries) >= c.limit {
		return nil
	}

	ttl, ttlErr := req.Client.TTL(req.Ctx, key).Result()
	if ttlErr != nil {
		return fmt.Errorf("query redis ttl for key %q: %w", key, ttlErr)
	}

	c.entries = append(c.entries, sessionEntry{Key: key, Session: session, TTL: ttl})
	return nil
}

func (c *sessionCollector) result() inspectSessionsResponse {
	sort.Slice(c.entries, func(i, j int) bool {
		if c.entries[i].Session.UserID == c.entries[j].Session.UserID {
			if c.entries[i].Session.ExpiresAt.Equal(c.entries[j].Session.ExpiresAt) {
				return c.entries[i].Session.ID < c.entries[j].Session.ID
			}
			return c.entries[i].Session.ExpiresAt.Before(c.entries[j].Session.ExpiresAt)
		}
		return c.entries[i].Session.UserID < c.entries[j].Session.UserID
	})

	return inspectSessionsResponse{
		Entries: c.entries,
		Total:   c.total,
	}
}

func sessionMatchesFilters(session domainauth.Session, opts *listSessionsOptions) bool {
	if opts == nil {
		return true
	}
	if opts.UserID != "" && session.UserID != opts.UserID {
		return false
	}
	if opts.Role != "" && session.Role != domainauth.Role(opts.Role) {
		return false
	}
	return true
}

func printSessionEntries(resp inspectSessionsResponse, opts *listSessionsOptions) error {
	if opts == nil {
		return errors.New("list options are required")
	}
	displayLimit := max(opts.Limit, 0)
	if err := writef(os.Stdout, "\nActive sessions"); err != nil {
		return fmt.Errorf("write sessions header: %w", err)
	}
	if displayLimit > 0 {
		if err := writef(os.Stdout, " (showing up to %d)", displayLimit); err != nil {
			return fmt.Errorf("write sessions limit: %w", err)
		}
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write sessions header newline: %w", err)
	}

	if len(resp.Entries) == 0 {
		if err := writeln(os.Stdout, "  (no sessions found)"); err != nil {
			return fmt.Errorf("write sessions empty message: %w", err)
		}
		return nil
	}

	if err := renderSessionTable(resp.Entries); err != nil {
		return err
	}

	if err := writef(os.Stdout, "Total sessions matched: %d\n", resp.Total); err != nil {
		return fmt.Errorf("write sessions total: %w", err)
	}
	if opts.Limit > 0 && resp.Total > len(resp.Entries) {
		if err := writeln(os.Stdout, "More sessions available; increase --limit to view additional entries."); err != nil {
			return fmt.Errorf("write sessions more-entries message: %w", err)
		}
	}
	return nil
}

func renderSessionTable(entries []sessionEntry) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "SESSION\tUSER\tEMAIL\tROLE\tEXPIRES (UTC)\tTTL"); err != nil {
		return fmt.Errorf("write sessions header row: %w", err)
	}

	for _, entry := range entries {
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			entry.Session.ID,
			entry.Session.UserID,
			entry.Session.Email,
			entry.Session.Role,
			formatTimestamp(entry.Session.ExpiresAt),
			formatRedisTTL(entry.TTL),
		); err != nil {
			return fmt.Errorf("write session row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush sessions table: %w", err)
	}
	return nil
}

type sessionRevokeRequest struct {
	Ctx      context.Context
	Client   redis.UniversalClient
	Logger   *slog.Logger
	Options  revokeSessionsOptions
	BatchCap int
}

type sessionRevokeStats struct {
	total    int
	deleted  int64
	failures int
}

func revokeSessionKeys(req *sessionRevokeRequest) (sessionRevokeStats, error) {
	if req == nil {
		return sessionRevokeStats{}, errors.New("revoke request is required")
	}

	pattern := sessionKeyPrefix + "*"
	if req.Options.SessionID != "" {
		pattern = sessionKeyPrefix + req.Options.SessionID
	}
	req.Logger.Info("scanning redis", "pattern", pattern, "dry_run", req.Options.DryRun)

	batchCap := req.BatchCap
	if batchCap <= 0 {
		batchCap = 1000
	}

	stats := sessionRevokeStats{}
	iter := req.Client.Scan(req.Ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, batchCap)

	for iter.Next(req.Ctx) {
		key := iter.Val()
		if !shouldRevokeSessionKey(req, key) {
			continue
		}

		stats.total++
		batch = append(batch, key)

		if len(batch) == batchCap {
			flushSessionBatch(req, batch, &stats)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis scan: %w", err)
	}

	flushSessionBatch(req, batch, &stats)
	return stats, nil
}

func shouldRevokeSessionKey(req *sessionRevokeRequest, key string) bool {
	if req.Options.UserID == "" {
		return true
	}

	payload, err := req.Client.Get(req.Ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		req.Logger.Warn("skipping session key", "key", key, "error", err)
		return false
	}

	var session domainauth.Session
	if decodeErr := json.Unmarshal([]byte(payload), &session); decodeErr != nil {
		req.Logger.Warn("skipping session key", "key", key, "error", decodeErr)
		return false
	}
	return session.UserID == req.Options.UserID
}

func flushSessionBatch(req *sessionRevokeRequest, batch []string, stats *sessionRevokeStats) {
	if len(batch) == 0 {
		return
	}
	if req.Options.DryRun {
		stats.deleted += int64(len(batch))
		req.Logger.Info("dry-run skipping session revoke", "count", len(batch))
		return
	}
	n, delErr := req.Client.Del(req.Ctx, batch...).Result()
	if delErr != nil {
		stats.failures++
		req.Logger.Error("failed to delete session keys", "count", len(batch), "error", delErr)
		return
	}
	stats.deleted += n
}
