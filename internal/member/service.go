package member

import (
	"context"
	"errors"
	"log"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/r9s-ai/open-data-router/pkg/apierr"
	"github.com/r9s-ai/open-data-router/pkg/converter"
	"github.com/r9s-ai/open-data-router/pkg/datamodel"
	"github.com/r9s-ai/open-data-router/pkg/datawrapper"
	"github.com/r9s-ai/open-data-router/pkg/dispatch"
)

const ServiceName = "memberService"

// Request keys.
const (
	KeyID       = "id"
	KeyMembers  = "members"
	KeyText     = "text"
	KeyActive   = "active"
	KeyCriteria = "criteria"
	KeySort     = "sort"
	KeyOrder    = "order"
)

type Service struct {
	store  *Store
	conv   converter.Converter
	logger *log.Logger
}

func NewService(store *Store, conv converter.Converter, logger *log.Logger) *Service {
	if conv == nil {
		conv = converter.Standard()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, conv: conv, logger: logger}
}

func (s *Service) Name() string { return ServiceName }

func (s *Service) Methods() map[string]dispatch.HandlerFunc {
	return map[string]dispatch.HandlerFunc{
		"getAllMembers": s.getAllMembers,
		"getMember":     s.getMember,
		"saveMembers":   s.saveMembers,
		"deleteMember":  s.deleteMember,
		"searchMembers": s.searchMembers,
		"stats":         s.stats,
	}
}

func (s *Service) model(members []Member) (*datamodel.DataModel, error) {
	ptrs := make([]*Member, len(members))
	for i := range members {
		ptrs[i] = &members[i]
	}
	m, err := datamodel.FromEntities(ptrs, datamodel.WithConverter(s.conv))
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		// keep the column layout for empty results
		if err := m.AddColumns(columnNames()...); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (s *Service) frozenModel(members []Member) (*datamodel.DataModel, error) {
	m, err := s.model(members)
	if err != nil {
		return nil, err
	}
	m.Freeze()
	return m, nil
}

func columnNames() []string {
	var probe Member
	fields := probe.Fields()
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}

func (s *Service) getAllMembers(ctx context.Context, _ *datawrapper.DataWrapper) (any, error) {
	members, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.frozenModel(members)
}

func (s *Service) getMember(ctx context.Context, req *datawrapper.DataWrapper) (any, error) {
	id, err := requiredID(req)
	if err != nil {
		return nil, err
	}
	m, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apierr.WithMetadata(apierr.CodeNotFound, "member not found", map[string]string{"id": id})
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) saveMembers(ctx context.Context, req *datawrapper.DataWrapper) (any, error) {
	in, ok := req.GetModel(KeyMembers)
	if !ok {
		return nil, apierr.New(apierr.CodeInvalidArgument, "members is required")
	}
	members, err := datamodel.Entities(in, func() *Member { return &Member{} })
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, apierr.New(apierr.CodeInvalidArgument, "members is empty")
	}
	batch := make([]Member, len(members))
	for i, m := range members {
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			return nil, apierr.WithMetadata(apierr.CodeInvalidArgument, "member name is required", map[string]string{"row": strconv.Itoa(i)})
		}
		if m.ID != "" {
			if _, err := uuid.Parse(m.ID); err != nil {
				return nil, apierr.WithMetadata(apierr.CodeInvalidArgument, "member id is not a uuid", map[string]string{"row": strconv.Itoa(i)})
			}
		}
		batch[i] = *m
	}
	saved, err := s.store.Save(ctx, batch)
	if err != nil {
		return nil, err
	}
	s.logger.Printf("[ODR] memberService saved=%d", len(saved))
	return s.frozenModel(saved)
}

func (s *Service) deleteMember(ctx context.Context, req *datawrapper.DataWrapper) (any, error) {
	id, err := requiredID(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, apierr.WithMetadata(apierr.CodeNotFound, "member not found", map[string]string{"id": id})
		}
		return nil, err
	}
	return id, nil
}

// searchMembers narrows in SQL by text and active, then applies the exact
// criteria row and the requested sort in memory.
func (s *Service) searchMembers(ctx context.Context, req *datawrapper.DataWrapper) (any, error) {
	text, _ := req.GetString(KeyText)
	var active *bool
	if v, ok := req.GetString(KeyActive); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, apierr.New(apierr.CodeInvalidArgument, "active must be true or false")
		}
		active = &b
	}
	members, err := s.store.Search(ctx, text, active)
	if err != nil {
		return nil, err
	}
	out, err := s.model(members)
	if err != nil {
		return nil, err
	}
	if crit, ok := req.GetModel(KeyCriteria); ok && crit.RowCount() > 0 {
		row, err := crit.Row(0)
		if err != nil {
			return nil, err
		}
		conds := make([]datamodel.Condition, 0, len(row))
		for _, col := range crit.Columns() {
			conds = append(conds, datamodel.Cond(col, row[col]))
		}
		if out, err = out.SearchRowsAsDataModel(true, conds...); err != nil {
			return nil, err
		}
	}
	if col, ok := req.GetString(KeySort); ok && col != "" {
		order, _ := req.GetString(KeyOrder)
		numeric := col == "age"
		if strings.EqualFold(order, "desc") {
			err = out.SortRowDescending(col, numeric)
		} else {
			err = out.SortRowAscending(col, numeric)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Service) stats(ctx context.Context, _ *datawrapper.DataWrapper) (any, error) {
	rows, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return datamodel.FromRows(rows, datamodel.WithConverter(s.conv))
}

func requiredID(req *datawrapper.DataWrapper) (string, error) {
	id, _ := req.GetString(KeyID)
	if id = strings.TrimSpace(id); id == "" {
		return "", apierr.New(apierr.CodeInvalidArgument, "id is required")
	}
	return id, nil
}
