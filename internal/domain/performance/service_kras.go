package performance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pmds/internal/domain/audit"
	"pmds/internal/domain/auth"
	"pmds/internal/platform/storage"
)

// Upload is an evidence file handed over by the transport layer.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *Service) AddKRA(ctx context.Context, user auth.UserContext, agreementID string, in KRAInput) (KRA, error) {
	a, actors, err := s.loadAgreement(ctx, user, agreementID)
	if err != nil {
		return KRA{}, err
	}
	if !CanEditAgreement(actors, a.Status) {
		return KRA{}, ErrNotEditable
	}
	k := KRA{AgreementID: agreementID, SortOrder: len(a.KRAs) + 1}
	if err := applyKRAInput(&k, in, KRARatingRights(actors, a.Status)); err != nil {
		return KRA{}, err
	}
	if strings.TrimSpace(k.Description) == "" {
		return KRA{}, fmt.Errorf("description is required")
	}
	id, err := s.store.CreateKRA(ctx, user.TenantID, k)
	if err != nil {
		return KRA{}, err
	}
	created, err := s.store.GetKRA(ctx, user.TenantID, agreementID, id)
	if err != nil {
		return KRA{}, err
	}
	s.record(ctx, user, audit.ActionCreate, audit.EntityKRA, id, created.Description, nil, created)
	return created, nil
}

func (s *Service) UpdateKRA(ctx context.Context, user auth.UserContext, agreementID, kraID string, in KRAInput) (KRA, error) {
	a, actors, err := s.loadAgreement(ctx, user, agreementID)
	if err != nil {
		return KRA{}, err
	}
	if !CanEditAgreement(actors, a.Status) {
		return KRA{}, ErrNotEditable
	}
	before, err := s.store.GetKRA(ctx, user.TenantID, agreementID, kraID)
	if err != nil {
		return KRA{}, err
	}
	k := before
	if err := applyKRAInput(&k, in, KRARatingRights(actors, a.Status)); err != nil {
		return KRA{}, err
	}
	if err := s.store.UpdateKRA(ctx, user.TenantID, k); err != nil {
		return KRA{}, err
	}
	after, err := s.store.GetKRA(ctx, user.TenantID, agreementID, kraID)
	if err != nil {
		return KRA{}, err
	}
	s.record(ctx, user, audit.ActionUpdate, audit.EntityKRA, kraID, after.Description, before, after)
	return after, nil
}

func (s *Service) DeleteKRA(ctx context.Context, user auth.UserContext, agreementID, kraID string) error {
	a, actors, err := s.loadAgreement(ctx, user, agreementID)
	if err != nil {
		return err
	}
	if !CanEditAgreement(actors, a.Status) {
		return ErrNotEditable
	}
	k, err := s.store.GetKRA(ctx, user.TenantID, agreementID, kraID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteKRA(ctx, user.TenantID, agreementID, kraID); err != nil {
		return err
	}
	s.removeEvidence(ctx, k.EvidenceKey)
	s.record(ctx, user, audit.ActionDelete, audit.EntityKRA, kraID, k.Description, k, nil)
	return nil
}

// applyKRAInput copies editable fields. Rating columns need the matching
// rating right; anything else is refused rather than ignored.
func applyKRAInput(k *KRA, in KRAInput, rights RatingRights) error {
	setText(&k.Description, in.Description)
	setText(&k.PerformanceObjective, in.PerformanceObjective)
	setText(&k.Measurement, in.Measurement)
	setText(&k.Tools, in.Tools)
	setText(&k.Barriers, in.Barriers)
	setText(&k.EvidenceExamples, in.EvidenceExamples)
	if in.Weighting != nil {
		if in.Weighting.IsNegative() || in.Weighting.GreaterThan(hundred) {
			return fmt.Errorf("weighting must be between 0 and 100")
		}
		k.Weighting = in.Weighting.Round(2)
	}
	if in.TargetDate != nil {
		k.TargetDate = in.TargetDate
	}
	if in.SortOrder != nil {
		k.SortOrder = *in.SortOrder
	}
	if in.EmployeeRating != nil || in.EmployeeComments != nil {
		if !rights.Employee {
			return fmt.Errorf("%w: employee rating", ErrForbidden)
		}
		k.EmployeeRating = roundRating(in.EmployeeRating, k.EmployeeRating)
		setText(&k.EmployeeComments, in.EmployeeComments)
	}
	if in.SupervisorRating != nil || in.SupervisorComments != nil || in.AgreedRating != nil {
		if !rights.Supervisor {
			return fmt.Errorf("%w: supervisor rating", ErrForbidden)
		}
		k.SupervisorRating = roundRating(in.SupervisorRating, k.SupervisorRating)
		k.AgreedRating = roundRating(in.AgreedRating, k.AgreedRating)
		setText(&k.SupervisorComments, in.SupervisorComments)
	}
	return nil
}

func roundRating(value, current *decimal.Decimal) *decimal.Decimal {
	if value == nil {
		return current
	}
	rounded := value.Round(2)
	return &rounded
}

// UpdateGAFs records which catalogue factors apply. Factors outside the
// catalogue are refused.
func (s *Service) UpdateGAFs(ctx context.Context, user auth.UserContext, agreementID string, in []GAFInput) ([]GAF, error) {
	a, actors, err := s.loadAgreement(ctx, user, agreementID)
	if err != nil {
		return nil, err
	}
	if !CanEditAgreement(actors, a.Status) {
		return nil, ErrNotEditable
	}
	current := make(map[string]GAF, len(a.GAFs))
	for _, g := range a.GAFs {
		current[g.Factor] = g
	}
	seen := map[string]bool{}
	gafs := make([]GAF, 0, len(in))
	for _, item := range in {
		code := strings.ToUpper(strings.TrimSpace(item.Factor))
		if _, ok := LookupFactor(code); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownFactor, item.Factor)
		}
		if seen[code] {
			return nil, fmt.Errorf("factor %s listed twice", code)
		}
		seen[code] = true
		g := current[code]
		g.Factor = code
		if item.IsApplicable != nil {
			g.IsApplicable = *item.IsApplicable
		}
		g.Comments = strings.TrimSpace(item.Comments)
		gafs = append(gafs, g)
	}
	if err := s.store.UpsertGAFs(ctx, user.TenantID, agreementID, gafs); err != nil {
		return nil, err
	}
	after, err := s.store.GetAgreement(ctx, user.TenantID, agreementID)
	if err != nil {
		return nil, err
	}
	s.record(ctx, user, audit.ActionUpdate, audit.EntityGAF, agreementID, after.String(), a.GAFs, after.GAFs)
	return after.GAFs, nil
}

// AttachKRAEvidence stores an upload and points the KRA at it, replacing
// any earlier file.
func (s *Service) AttachKRAEvidence(ctx context.Context, user auth.UserContext, agreementID, kraID string, up Upload) (KRA, error) {
	a, actors, err := s.loadAgreement(ctx, user, agreementID)
	if err != nil {
		return KRA{}, err
	}
	if !CanEditAgreement(actors, a.Status) {
		return KRA{}, ErrEvidenceNotAllowed
	}
	before, err := s.store.GetKRA(ctx, user.TenantID, agreementID, kraID)
	if err != nil {
		return KRA{}, err
	}
	key, err := s.putEvidence(ctx, user.TenantID, storage.KindKRA, kraID, up)
	if err != nil {
		return KRA{}, err
	}
	if err := s.store.SetKRAEvidence(ctx, user.TenantID, kraID, key, up.Filename, s.now()); err != nil {
		s.removeEvidence(ctx, key)
		return KRA{}, err
	}
	s.removeEvidence(ctx, before.EvidenceKey)
	after, err := s.store.GetKRA(ctx, user.TenantID, agreementID, kraID)
	if err != nil {
		return KRA{}, err
	}
	s.record(ctx, user, audit.ActionUpdate, audit.EntityKRA, kraID, after.Description, before, after)
	return after, nil
}

func (s *Service) putEvidence(ctx context.Context, tenantID, kind, ownerID string, up Upload) (string, error) {
	if s.Evidence == nil {
		return "", fmt.Errorf("evidence storage is not configured")
	}
	key := storage.EvidenceKey(tenantID, kind, ownerID, uuid.NewString(), up.Filename)
	if err := s.Evidence.Put(ctx, key, up.Body, up.Size, up.ContentType); err != nil {
		return "", fmt.Errorf("store evidence: %w", err)
	}
	return key, nil
}

func (s *Service) removeEvidence(ctx context.Context, key string) {
	if key == "" || s.Evidence == nil {
		return
	}
	if err := s.Evidence.Delete(ctx, key); err != nil {
		slog.Warn("evidence cleanup failed", "key", key, "err", err)
	}
}

// OpenEvidence returns the stored file behind a KRA or rating row on an
// agreement the user can see.
func (s *Service) OpenEvidence(ctx context.Context, user auth.UserContext, key string) (io.ReadCloser, error) {
	if s.Evidence == nil || !strings.HasPrefix(key, "tenants/"+user.TenantID+"/") {
		return nil, ErrNotFound
	}
	agreementID, err := s.store.EvidenceAgreement(ctx, user.TenantID, key)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.loadAgreement(ctx, user, agreementID); err != nil {
		return nil, err
	}
	rc, err := s.Evidence.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rc, err
}
