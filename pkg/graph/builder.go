package graph

import (
	"context"
	"reflect"
	"time"

	"github.com/venturehq/venture/pkg/eventbus"
	"github.com/venturehq/venture/pkg/events"
	"github.com/venturehq/venture/pkg/models"
)

// TypeIdentity derives the default job id from a payload. The engine never
// inspects payload internals; it only requires the returned id to be a
// stable string for a given payload type.
type TypeIdentity func(payload any) string

// DefaultTypeIdentity names a payload after its Go type.
func DefaultTypeIdentity(payload any) string {
	t := reflect.TypeOf(payload)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil {
		return ""
	}

	if t.Name() != "" {
		return t.Name()
	}

	return t.String()
}

// DependencyRef is a dependency resolved only when the graph is built:
// the primary id if a node with that id exists in the final graph, else the
// fallback, else no dependency at all. It lets downstream jobs avoid
// hard-coding which definition-time branch was taken.
type DependencyRef struct {
	primary  string
	fallback string
}

// DependencyIf builds a conditional dependency on primary, with at most one
// fallback id.
func DependencyIf(primary string, fallback ...string) DependencyRef {
	ref := DependencyRef{primary: primary}
	if len(fallback) > 0 {
		ref.fallback = fallback[0]
	}

	return ref
}

// Builder accumulates job nodes, nested sub-graphs and dependency
// declarations into a Graph. Structural violations are raised synchronously
// from AddJob/AddGraph, before any job is ever dispatched.
type Builder struct {
	identity TypeIdentity
	hooks    *eventbus.Hooks

	nodes           []*models.JobNode
	index           map[string]*models.JobNode
	nestedTerminals map[string][]string
	refs            map[string][]DependencyRef
}

type BuilderOption func(*Builder)

// WithTypeIdentity overrides how default job ids are derived from payloads.
func WithTypeIdentity(identity TypeIdentity) BuilderOption {
	return func(b *Builder) {
		b.identity = identity
	}
}

// WithHooks attaches the hook bus that JobAdding/JobAdded fire on.
func WithHooks(hooks *eventbus.Hooks) BuilderOption {
	return func(b *Builder) {
		b.hooks = hooks
	}
}

func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		identity:        DefaultTypeIdentity,
		index:           make(map[string]*models.JobNode),
		nestedTerminals: make(map[string][]string),
		refs:            make(map[string][]DependencyRef),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

type jobConfig struct {
	id     string
	name   string
	delay  *time.Time
	queue  models.QueueRef
	gated  bool
	deps   []string
	refs   []DependencyRef
	params map[string]any
}

type JobOption func(*jobConfig)

func WithID(id string) JobOption {
	return func(c *jobConfig) {
		c.id = id
	}
}

func WithName(name string) JobOption {
	return func(c *jobConfig) {
		c.name = name
	}
}

// WithDelay schedules the job's dispatch no earlier than t.
func WithDelay(t time.Time) JobOption {
	return func(c *jobConfig) {
		c.delay = &t
	}
}

func WithQueue(queue, connection string) JobOption {
	return func(c *jobConfig) {
		c.queue = models.QueueRef{Queue: queue, Connection: connection}
	}
}

// WithGate holds the job once its dependencies finish; it needs an explicit
// start instead of auto-dispatch.
func WithGate() JobOption {
	return func(c *jobConfig) {
		c.gated = true
	}
}

func WithDependencies(ids ...string) JobOption {
	return func(c *jobConfig) {
		c.deps = append(c.deps, ids...)
	}
}

// WithDependency declares a conditional dependency resolved at Build time.
func WithDependency(ref DependencyRef) JobOption {
	return func(c *jobConfig) {
		c.refs = append(c.refs, ref)
	}
}

func WithParams(params map[string]any) JobOption {
	return func(c *jobConfig) {
		c.params = params
	}
}

// AddJob appends a job node for the given payload and returns its id. Every
// id in the declared dependencies must already exist in the graph; a missing
// reference or a conflicting id aborts the definition. JobAdding fires
// before insertion (subscribers may alter id, name and delay) and JobAdded
// after.
func (b *Builder) AddJob(payload any, opts ...JobOption) (string, error) {
	cfg := jobConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := cfg.id
	if id == "" {
		id = b.identity(payload)
	}

	name := cfg.name
	if name == "" {
		name = id
	}

	deps, err := b.resolveDependencies("AddJob", id, cfg.deps)
	if err != nil {
		return "", err
	}

	adding := &events.JobAdding{
		BaseEvent:    events.NewBaseEvent(events.JobAddingEvent, ""),
		JobID:        id,
		Name:         name,
		Delay:        cfg.delay,
		Dependencies: deps,
	}

	if err := b.emit(adding); err != nil {
		return "", err
	}

	// Subscribers may have rewritten the identity fields.
	id = adding.JobID
	name = adding.Name

	if err := b.checkDuplicate("AddJob", id); err != nil {
		return "", err
	}

	node := &models.JobNode{
		ID:           id,
		Type:         b.identity(payload),
		Name:         name,
		Dependencies: deps,
		Position:     len(b.nodes),
		Delay:        adding.Delay,
		Queue:        cfg.queue,
		Gated:        cfg.gated,
		Params:       cfg.params,
		Status:       models.JobStatusPending,
	}

	b.nodes = append(b.nodes, node)
	b.index[id] = node

	if len(cfg.refs) > 0 {
		b.refs[id] = cfg.refs
	}

	added := &events.JobAdded{
		BaseEvent:    events.NewBaseEvent(events.JobAddedEvent, ""),
		JobID:        id,
		Dependencies: deps,
	}

	if err := b.emit(added); err != nil {
		return id, err
	}

	return id, nil
}

// AddGraph embeds child as a nested workflow under id. Every child node id
// is namespaced with "id.", every child root gains the given dependencies,
// and later jobs depending on id itself are wired to the child's terminal
// nodes instead.
func (b *Builder) AddGraph(child *Builder, id string, deps ...string) error {
	resolved, err := b.resolveDependencies("AddGraph", id, deps)
	if err != nil {
		return err
	}

	if err := b.checkDuplicate("AddGraph", id); err != nil {
		return err
	}

	childNodes := child.resolvedNodes()

	for _, childNode := range childNodes {
		if err := b.checkDuplicate("AddGraph", id+"."+childNode.ID); err != nil {
			return err
		}
	}

	for _, childNode := range childNodes {
		node := cloneNode(childNode)
		node.ID = id + "." + childNode.ID
		node.Position = len(b.nodes)

		if len(childNode.Dependencies) == 0 {
			node.Dependencies = append([]string(nil), resolved...)
		} else {
			node.Dependencies = make([]string, len(childNode.Dependencies))
			for i, dep := range childNode.Dependencies {
				node.Dependencies[i] = id + "." + dep
			}
		}

		b.nodes = append(b.nodes, node)
		b.index[node.ID] = node
	}

	terminals := terminalIDs(childNodes)

	namespaced := make([]string, len(terminals))
	for i, terminal := range terminals {
		namespaced[i] = id + "." + terminal
	}

	b.nestedTerminals[id] = namespaced

	return nil
}

// Build resolves conditional dependencies, verifies the graph is acyclic and
// returns it sealed.
func (b *Builder) Build() (*Graph, error) {
	for id, refs := range b.refs {
		node := b.index[id]

		for _, ref := range refs {
			resolved, ok := b.resolveRef(ref)
			if !ok {
				continue
			}

			for _, dep := range resolved {
				if !node.DependsOn(dep) {
					node.Dependencies = append(node.Dependencies, dep)
				}
			}
		}
	}

	if err := detectCycle(b.nodes); err != nil {
		return nil, err
	}

	g := newGraph(b.nodes)
	g.Seal()

	return g, nil
}

// resolveRef picks the primary id when present in the final graph, else the
// fallback, else nothing. Nested workflow ids expand to their terminals.
func (b *Builder) resolveRef(ref DependencyRef) ([]string, bool) {
	if ids, ok := b.expand(ref.primary); ok {
		return ids, true
	}

	if ref.fallback == "" {
		return nil, false
	}

	if ids, ok := b.expand(ref.fallback); ok {
		return ids, true
	}

	return nil, false
}

// expand maps a dependency id to concrete node ids: itself for plain nodes,
// the nested graph's terminal nodes for nested workflow ids.
func (b *Builder) expand(dep string) ([]string, bool) {
	if _, ok := b.index[dep]; ok {
		return []string{dep}, true
	}

	if terminals, ok := b.nestedTerminals[dep]; ok {
		return terminals, true
	}

	return nil, false
}

func (b *Builder) resolveDependencies(op, jobID string, deps []string) ([]string, error) {
	var resolved []string

	for _, dep := range deps {
		ids, ok := b.expand(dep)
		if !ok {
			return nil, &DefinitionError{Op: op, JobID: jobID, Dependency: dep, Err: ErrUnresolvableDependency}
		}

		resolved = append(resolved, ids...)
	}

	return resolved, nil
}

func (b *Builder) checkDuplicate(op, id string) error {
	if _, ok := b.index[id]; ok {
		return &DefinitionError{Op: op, JobID: id, Err: ErrDuplicateJob}
	}

	if _, ok := b.nestedTerminals[id]; ok {
		return &DefinitionError{Op: op, JobID: id, Err: ErrDuplicateJob}
	}

	return nil
}

// resolvedNodes finalizes the builder's own conditional refs and returns its
// nodes. Used when this builder is embedded into a parent graph.
func (b *Builder) resolvedNodes() []*models.JobNode {
	for id, refs := range b.refs {
		node := b.index[id]

		for _, ref := range refs {
			resolved, ok := b.resolveRef(ref)
			if !ok {
				continue
			}

			for _, dep := range resolved {
				if !node.DependsOn(dep) {
					node.Dependencies = append(node.Dependencies, dep)
				}
			}
		}
	}

	b.refs = make(map[string][]DependencyRef)

	return b.nodes
}

func (b *Builder) emit(event eventbus.Event) error {
	if b.hooks == nil {
		return nil
	}

	return b.hooks.Emit(context.Background(), event)
}

func cloneNode(node *models.JobNode) *models.JobNode {
	clone := *node
	clone.Dependencies = append([]string(nil), node.Dependencies...)

	if node.Params != nil {
		clone.Params = make(map[string]any, len(node.Params))
		for k, v := range node.Params {
			clone.Params[k] = v
		}
	}

	return &clone
}

func terminalIDs(nodes []*models.JobNode) []string {
	hasDependent := make(map[string]bool, len(nodes))

	for _, node := range nodes {
		for _, dep := range node.Dependencies {
			hasDependent[dep] = true
		}
	}

	var terminals []string

	for _, node := range nodes {
		if !hasDependent[node.ID] {
			terminals = append(terminals, node.ID)
		}
	}

	return terminals
}

// detectCycle runs Kahn's algorithm over the declared edges. A cycle is a
// definition-time error: every node on it would wait on the others forever.
func detectCycle(nodes []*models.JobNode) error {
	indegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))

	for _, node := range nodes {
		indegree[node.ID] = len(node.Dependencies)

		for _, dep := range node.Dependencies {
			dependents[dep] = append(dependents[dep], node.ID)
		}
	}

	var frontier []string

	for _, node := range nodes {
		if indegree[node.ID] == 0 {
			frontier = append(frontier, node.ID)
		}
	}

	processed := 0

	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		processed++

		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				frontier = append(frontier, dependent)
			}
		}
	}

	if processed < len(nodes) {
		for _, node := range nodes {
			if indegree[node.ID] > 0 {
				return &DefinitionError{Op: "Build", JobID: node.ID, Err: ErrCycleDetected}
			}
		}
	}

	return nil
}
