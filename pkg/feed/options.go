package feed

// RequestOptions is the marker interface implemented by the two concrete,
// frozen option types below. TaskFactory dispatches on its concrete type.
type RequestOptions interface {
	isRequestOptions()
}

// Filter is either a pre-compiled pipeline ([]map[string]interface{}), a
// structured filter (map[string]interface{} or TypedFilter), or nil. Build()
// does not check it; any other value is a configuration error returned by
// Container.Register (see CompilePipeline).
type Filter interface{}

// ChangeStreamOptions configures a change-stream subscription (§3, §4.1,
// §4.3). Values are frozen once Build() returns them; the builder is the
// only mutable handle.
type ChangeStreamOptions struct {
	CollectionName     string
	Filter             Filter
	ResumeToken        ResumeToken
	FullDocumentLookup *FullDocumentMode // nil means "resolve automatically", per §4.3 step 2
	Collation          *Collation
}

func (ChangeStreamOptions) isRequestOptions() {}

// ChangeStreamOptionsBuilder is the fluent builder for ChangeStreamOptions.
type ChangeStreamOptionsBuilder struct {
	opts ChangeStreamOptions
}

// NewChangeStreamOptions starts a builder for a change-stream subscription
// against collectionName.
func NewChangeStreamOptions(collectionName string) *ChangeStreamOptionsBuilder {
	return &ChangeStreamOptionsBuilder{opts: ChangeStreamOptions{CollectionName: collectionName}}
}

func (b *ChangeStreamOptionsBuilder) Filter(f Filter) *ChangeStreamOptionsBuilder {
	b.opts.Filter = f
	return b
}

func (b *ChangeStreamOptionsBuilder) ResumeAfter(token ResumeToken) *ChangeStreamOptionsBuilder {
	b.opts.ResumeToken = token
	return b
}

func (b *ChangeStreamOptionsBuilder) FullDocument(mode FullDocumentMode) *ChangeStreamOptionsBuilder {
	m := mode
	b.opts.FullDocumentLookup = &m
	return b
}

func (b *ChangeStreamOptionsBuilder) Collation(c Collation) *ChangeStreamOptionsBuilder {
	b.opts.Collation = &c
	return b
}

// Build returns a frozen snapshot of the options accumulated so far.
func (b *ChangeStreamOptionsBuilder) Build() ChangeStreamOptions {
	return b.opts
}

// TailingQuery bundles the filter and collation a tailing subscription's
// cursor is opened with (§3 Tailing.query).
type TailingQuery struct {
	Filter    Filter
	Collation *Collation
}

// TailingOptions configures a tailing-cursor subscription over a capped
// collection (§3, §4.4).
type TailingOptions struct {
	CollectionName string
	Query          *TailingQuery
}

func (TailingOptions) isRequestOptions() {}

// TailingOptionsBuilder is the fluent builder for TailingOptions.
type TailingOptionsBuilder struct {
	opts TailingOptions
}

// NewTailingOptions starts a builder for a tailing subscription against
// collectionName.
func NewTailingOptions(collectionName string) *TailingOptionsBuilder {
	return &TailingOptionsBuilder{opts: TailingOptions{CollectionName: collectionName}}
}

func (b *TailingOptionsBuilder) Query(filter Filter, collation *Collation) *TailingOptionsBuilder {
	b.opts.Query = &TailingQuery{Filter: filter, Collation: collation}
	return b
}

// Build returns a frozen snapshot of the options accumulated so far.
func (b *TailingOptionsBuilder) Build() TailingOptions {
	return b.opts
}
