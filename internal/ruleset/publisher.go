package ruleset

import (
	"context"
	"fmt"
	"strconv"

	"github.com/acted/rules-engine/internal/messagetemplate"
	"github.com/acted/rules-engine/internal/rule"
	"github.com/acted/rules-engine/internal/schema"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Notifier tells the other processes that the rule set changed
type Notifier interface {
	Notify(ctx context.Context, revision uint64) error
}

// PostgresNotifier emits a NOTIFY on a channel, the payload being the local revision
type PostgresNotifier struct {
	conn    *sqlx.DB
	channel string
}

// NewPostgresNotifier returns a new instance of PostgresNotifier
func NewPostgresNotifier(dbClient *sqlx.DB, channel string) *PostgresNotifier {
	return &PostgresNotifier{conn: dbClient, channel: channel}
}

// Notify sends the notification
func (n *PostgresNotifier) Notify(ctx context.Context, revision uint64) error {
	_, err := n.conn.ExecContext(ctx, `SELECT pg_notify($1, $2)`, n.channel, strconv.FormatUint(revision, 10))
	return err
}

// Publisher is the administrative write path: every change is validated, written
// to the stores, then the local cache and the other processes are invalidated
type Publisher struct {
	Rules     rule.Repository
	Schemas   schema.Repository
	Templates messagetemplate.Repository
	Validator rule.Validator
	Cache     *Cache
	Notifier  Notifier
}

// NewPublisher returns a Publisher validating rules against the same stores it writes to
func NewPublisher(rules rule.Repository, schemas schema.Repository, templates messagetemplate.Repository,
	validator rule.Validator, cache *Cache, notifier Notifier) *Publisher {
	validator.Schemas = schemas
	validator.Templates = templates
	return &Publisher{
		Rules:     rules,
		Schemas:   schemas,
		Templates: templates,
		Validator: validator,
		Cache:     cache,
		Notifier:  notifier,
	}
}

// SaveSchema stores a new version of a schema
func (p *Publisher) SaveSchema(ctx context.Context, s schema.Schema) (int64, error) {
	version, err := p.saveSchema(s)
	if err != nil {
		return -1, err
	}
	p.changed(ctx)
	return version, nil
}

func (p *Publisher) saveSchema(s schema.Schema) (int64, error) {
	if ok, err := s.IsValid(); !ok {
		return -1, fmt.Errorf("%w: %s", schema.ErrInvalidSchema, err)
	}
	if _, err := schema.Compile(s); err != nil {
		return -1, err
	}
	return p.Schemas.Create(s)
}

// SaveTemplate creates or replaces a message template
func (p *Publisher) SaveTemplate(ctx context.Context, t messagetemplate.Template) error {
	if err := p.saveTemplate(t); err != nil {
		return err
	}
	p.changed(ctx)
	return nil
}

func (p *Publisher) saveTemplate(t messagetemplate.Template) error {
	if ok, err := t.IsValid(); !ok {
		return err
	}
	return p.Templates.Save(t)
}

// CreateRule validates and stores the first version of a rule
func (p *Publisher) CreateRule(ctx context.Context, r rule.Rule) (int64, error) {
	if err := p.Validator.Validate(r); err != nil {
		return -1, err
	}
	version, err := p.Rules.Create(r)
	if err != nil {
		return -1, err
	}
	p.changed(ctx)
	return version, nil
}

// PublishRule validates and stores a new version of an existing rule
func (p *Publisher) PublishRule(ctx context.Context, r rule.Rule) (int64, error) {
	if err := p.Validator.Validate(r); err != nil {
		return -1, err
	}
	version, err := p.Rules.Publish(r)
	if err != nil {
		return -1, err
	}
	p.changed(ctx)
	return version, nil
}

// RetireRule publishes an inactive version of a rule
func (p *Publisher) RetireRule(ctx context.Context, code string) (int64, error) {
	version, err := p.Rules.Retire(code)
	if err != nil {
		return -1, err
	}
	p.changed(ctx)
	return version, nil
}

// PublishCatalog stores a whole rule pack: schemas, then templates, then rules.
// Unchanged schemas and rules are left at their current version.
// The cache is invalidated once, after the last write.
func (p *Publisher) PublishCatalog(ctx context.Context, c rule.Catalog) error {
	defer p.changed(ctx)

	for _, s := range c.Schemas {
		latest, found, err := p.Schemas.Get(s.Code)
		if err != nil {
			return err
		}
		if found && latest.Active == s.Active && latest.Document.Equal(s.Document) {
			continue
		}
		if _, err := p.saveSchema(s); err != nil {
			return fmt.Errorf("schema %s: %w", s.Code, err)
		}
	}

	for _, t := range c.Templates {
		if err := p.saveTemplate(t); err != nil {
			return fmt.Errorf("template %s: %w", t.Name, err)
		}
	}

	for _, r := range c.Rules {
		if err := p.Validator.Validate(r); err != nil {
			return err
		}
		latest, found, err := p.Rules.Get(r.Code)
		if err != nil {
			return err
		}
		switch {
		case !found:
			_, err = p.Rules.Create(r)
		case latest.SameDefinitionAs(r):
			continue
		default:
			_, err = p.Rules.Publish(r)
		}
		if err != nil {
			return fmt.Errorf("rule %s: %w", r.Code, err)
		}
	}

	zap.L().Info("Rule catalog published", zap.Int("schemas", len(c.Schemas)),
		zap.Int("templates", len(c.Templates)), zap.Int("rules", len(c.Rules)))
	return nil
}

func (p *Publisher) changed(ctx context.Context) {
	var revision uint64
	if p.Cache != nil {
		revision = p.Cache.Invalidate()
	}
	if p.Notifier != nil {
		if err := p.Notifier.Notify(ctx, revision); err != nil {
			zap.L().Error("Couldn't notify the rule set change", zap.Error(err))
		}
	}
}
