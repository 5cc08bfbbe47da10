package expr

import (
	"sort"
	"strings"

	"github.com/IroiKanta/StarryEyes/model"
	"github.com/IroiKanta/StarryEyes/value"
)

var (
	_ BooleanNode  = (*Field)(nil)
	_ NumericNode  = (*Field)(nil)
	_ StringNode   = (*Field)(nil)
	_ SetNode      = (*Field)(nil)
	_ NullableNode = (*Field)(nil)
)

// Field reads a value off the status. Column references assume the status
// table is aliased as `status`, see store.
type Field struct {
	name     string
	kinds    value.Kinds
	nullable bool

	boolFn  BoolFunc
	boolSQL string
	numFn   NumericFunc
	numSQL  string
	strFn   StringFunc
	strSQL  string
	setFn   SetFunc
	setSQL  string
}

func (m *Field) Name() string                { return m.name }
func (m *Field) SupportedTypes() value.Kinds { return m.kinds }
func (m *Field) ToQuery() string             { return m.name }
func (m *Field) Nullable() bool              { return m.nullable }

func (m *Field) must(k value.Kind) {
	if !m.kinds.Has(k) {
		panic(unsupported(m, k))
	}
}

func (m *Field) BooleanEvaluator() (BoolFunc, error) {
	m.must(value.BooleanKind)
	return m.boolFn, nil
}
func (m *Field) BooleanSQL() (string, error) {
	m.must(value.BooleanKind)
	return m.boolSQL, nil
}
func (m *Field) NumericEvaluator() (NumericFunc, error) {
	m.must(value.NumericKind)
	return m.numFn, nil
}
func (m *Field) NumericSQL() (string, error) {
	m.must(value.NumericKind)
	return m.numSQL, nil
}
func (m *Field) StringEvaluator() (StringFunc, error) {
	m.must(value.StringKind)
	return m.strFn, nil
}
func (m *Field) StringSQL() (string, error) {
	m.must(value.StringKind)
	return m.strSQL, nil
}
func (m *Field) SetEvaluator() (SetFunc, error) {
	m.must(value.SetKind)
	return m.setFn, nil
}
func (m *Field) SetSQL() (string, error) {
	m.must(value.SetKind)
	return m.setSQL, nil
}

// field builder, kinds are accumulated from the accessor pairs given
type fieldOpt func(f *Field)

func boolOf(fn BoolFunc, sql string) fieldOpt {
	return func(f *Field) {
		f.kinds |= value.NewKinds(value.BooleanKind)
		f.boolFn, f.boolSQL = fn, sql
	}
}
func numOf(fn NumericFunc, sql string) fieldOpt {
	return func(f *Field) {
		f.kinds |= value.NewKinds(value.NumericKind)
		f.numFn, f.numSQL = fn, sql
	}
}
func strOf(fn StringFunc, sql string) fieldOpt {
	return func(f *Field) {
		f.kinds |= value.NewKinds(value.StringKind)
		f.strFn, f.strSQL = fn, sql
	}
}
func setOf(fn SetFunc, sql string) fieldOpt {
	return func(f *Field) {
		f.kinds |= value.NewKinds(value.SetKind)
		f.setFn, f.setSQL = fn, sql
	}
}
func nullable(f *Field) { f.nullable = true }

func newField(name string, opts ...fieldOpt) *Field {
	f := &Field{name: name}
	for _, o := range opts {
		o(f)
	}
	if f.kinds.Empty() {
		panic("expr: field " + name + " has no kinds")
	}
	return f
}

func present(s string) (string, bool) { return s, true }

func userColumn(key, column string) string {
	return "(select " + column + " from User where Id = status." + key + " limit 1)"
}

func statusSet(table string) string {
	return "(select UserId from " + table + " where StatusId = status.BaseId)"
}

type userFlag struct {
	name   string
	column string
	get    func(u *model.User) bool
}

var userFlags = []userFlag{
	{"is_protected", "IsProtected", func(u *model.User) bool { return u.IsProtected }},
	{"is_verified", "IsVerified", func(u *model.User) bool { return u.IsVerified }},
	{"is_translator", "IsTranslator", func(u *model.User) bool { return u.IsTranslator }},
	{"is_contributors_enabled", "IsContributorsEnabled", func(u *model.User) bool { return u.IsContributorsEnabled }},
	{"is_geo_enabled", "IsGeoEnabled", func(u *model.User) bool { return u.IsGeoEnabled }},
}

var fields = map[string]*Field{}

func register(f *Field) *Field {
	fields[f.name] = f
	return f
}

var (
	StatusID = register(newField("id",
		numOf(func(s *model.Status) int64 { return s.ID }, "status.Id"),
	))
	StatusText = register(newField("text",
		strOf(func(s *model.Status) (string, bool) { return present(s.Original().Text) }, "status.Text"),
	))
	StatusVia = register(newField("via",
		strOf(func(s *model.Status) (string, bool) { return present(s.Original().ClientName()) }, "status.Source"),
	))
	StatusCreatedAt = register(newField("created_at",
		numOf(func(s *model.Status) int64 { return s.CreatedAt.Unix() }, "status.CreatedAt"),
	))
	StatusInReplyTo = register(newField("in_reply_to",
		numOf(func(s *model.Status) int64 {
			if id := s.Original().InReplyToStatusID; id != 0 {
				return id
			}
			return value.DefaultNumeric
		}, Coalesce("status.InReplyToStatusId", value.DefaultNumeric)),
	))
	StatusIsRetweet = register(newField("is_retweet",
		boolOf(func(s *model.Status) bool { return s.IsRetweet() }, "(status.RetweetOriginalId is not null)"),
	))
	StatusFavorites = register(newField("favorites",
		setOf(func(s *model.Status) value.IDSet { return value.NewIDs(s.Original().FavoritedUsers...) }, statusSet("Favorite")),
	))
	StatusRetweets = register(newField("retweets",
		setOf(func(s *model.Status) value.IDSet { return value.NewIDs(s.Original().RetweetedUsers...) }, statusSet("Retweet")),
	))
	StatusMentions = register(newField("mentions",
		setOf(func(s *model.Status) value.IDSet { return value.NewIDs(s.Original().MentionedUsers...) }, statusSet("Mention")),
	))

	// User is the author of the original status.
	User = register(newField("user",
		numOf(func(s *model.Status) int64 { return s.Original().User.ID }, "status.BaseUserId"),
		strOf(func(s *model.Status) (string, bool) { return present(s.Original().User.ScreenName) },
			userColumn("BaseUserId", "ScreenName")),
	))
	UserLocation = register(newField("user.location",
		strOf(func(s *model.Status) (string, bool) {
			loc := s.Original().User.Location
			return loc, loc != ""
		}, userColumn("BaseUserId", "Location")),
		nullable,
	))

	// Retweeter is the retweeting user, -1 and "" for statuses that are not
	// retweets.
	Retweeter = register(newField("retweeter",
		numOf(func(s *model.Status) int64 {
			if u := s.Retweeter(); u != nil {
				return u.ID
			}
			return value.DefaultNumeric
		}, Coalesce("status.RetweeterId", value.DefaultNumeric)),
		strOf(func(s *model.Status) (string, bool) {
			if u := s.Retweeter(); u != nil {
				return u.ScreenName, true
			}
			return value.DefaultString, true
		}, Coalesce(userColumn("RetweeterId", "ScreenName"), value.DefaultString)),
	))
)

func init() {
	for _, uf := range userFlags {
		get := uf.get
		register(newField("user."+uf.name,
			boolOf(func(s *model.Status) bool { return get(s.Original().User) },
				userColumn("BaseUserId", uf.column)),
		))
		register(newField("retweeter."+uf.name,
			boolOf(func(s *model.Status) bool {
				if u := s.Retweeter(); u != nil {
					return get(u)
				}
				return value.DefaultBoolean
			}, Coalesce(userColumn("RetweeterId", uf.column), value.DefaultBoolean)),
		))
	}
}

// LookupField finds a field by its query name, ie "user.is_verified".
func LookupField(name string) (*Field, bool) {
	f, ok := fields[strings.ToLower(name)]
	return f, ok
}

// FieldNames lists every known field, sorted.
func FieldNames() []string {
	names := make([]string, 0, len(fields))
	for n := range fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
