package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/heartcare-ai/heartcare/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	cfg := domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "heartcare-test.db"),
	}

	repo, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testUser(id, email, username string) *domain.User {
	return &domain.User{
		ID:           id,
		Email:        email,
		Username:     username,
		PasswordHash: "$2a$10$hash",
		Active:       true,
	}
}

func testAssessment(id string, score int, level domain.RiskLevel, at time.Time) *domain.Assessment {
	return &domain.Assessment{
		ID:     id,
		Status: domain.StatusScored,
		Params: domain.HealthParameters{
			Age: 55, Sex: "M", ChestPainType: "ASY", RestingBP: 140, Cholesterol: 210,
			FastingBS: "0", RestingECG: "Normal", MaxHR: 150, ExerciseAngina: "N", Oldpeak: 1.0, STSlope: "Flat",
		},
		RiskScore:       score,
		RiskLevel:       level,
		Factors:         []string{"Age over 50", "Male sex"},
		Recommendations: "## Moderate Risk",
		Screenings: []domain.RuleResult{
			{RuleID: "bp-crisis", SubRuleRef: domain.RuleOutcomePass, Reason: "ok"},
		},
		CreatedAt: at,
		Metadata:  domain.AssessmentMetadata{TraceID: "trace-" + id, EngineVersion: "heartcare-1.0"},
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Users", func(t *testing.T) {
		u := testUser("user-001", "alice@example.com", "alice")
		if err := repo.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}

		byEmail, err := repo.GetUserByEmail(ctx, "alice@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail failed: %v", err)
		}
		if byEmail.ID != "user-001" || !byEmail.Active {
			t.Errorf("unexpected user: %+v", byEmail)
		}
		if byEmail.PasswordHash != u.PasswordHash {
			t.Error("password hash not stored")
		}
		if byEmail.Role != domain.RoleUser || byEmail.IsOperator() {
			t.Errorf("expected default user role, got %q", byEmail.Role)
		}

		if _, err := repo.GetUserByUsername(ctx, "alice"); err != nil {
			t.Errorf("GetUserByUsername failed: %v", err)
		}
		if _, err := repo.GetUserByID(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UserConflicts", func(t *testing.T) {
		err := repo.CreateUser(ctx, testUser("user-002", "alice@example.com", "alice2"))
		if !errors.Is(err, ErrEmailTaken) || !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrEmailTaken, got %v", err)
		}

		err = repo.CreateUser(ctx, testUser("user-002", "other@example.com", "alice"))
		if !errors.Is(err, ErrUsernameTaken) {
			t.Errorf("expected ErrUsernameTaken, got %v", err)
		}
	})

	t.Run("UpdateUser", func(t *testing.T) {
		if err := repo.CreateUser(ctx, testUser("user-003", "bob@example.com", "bob")); err != nil {
			t.Fatal(err)
		}

		u, _ := repo.GetUserByID(ctx, "user-003")
		u.Username = "alice"
		if err := repo.UpdateUser(ctx, u); !errors.Is(err, ErrUsernameTaken) {
			t.Errorf("expected ErrUsernameTaken, got %v", err)
		}

		u.Username = "bobby"
		if err := repo.UpdateUser(ctx, u); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		got, _ := repo.GetUserByID(ctx, "user-003")
		if got.Username != "bobby" {
			t.Errorf("expected bobby, got %s", got.Username)
		}

		if err := repo.UpdatePassword(ctx, "user-003", "$2a$10$new"); err != nil {
			t.Fatalf("UpdatePassword failed: %v", err)
		}
		got, _ = repo.GetUserByID(ctx, "user-003")
		if got.PasswordHash != "$2a$10$new" {
			t.Error("password not updated")
		}

		if err := repo.UpdatePassword(ctx, "ghost", "$2a$10$x"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetUserRole", func(t *testing.T) {
		if err := repo.SetUserRole(ctx, "user-001", domain.RoleOperator); err != nil {
			t.Fatalf("SetUserRole failed: %v", err)
		}
		got, _ := repo.GetUserByID(ctx, "user-001")
		if !got.IsOperator() {
			t.Errorf("expected operator role, got %q", got.Role)
		}

		got.Role = domain.RoleUser
		got.Username = "alice"
		if err := repo.UpdateUser(ctx, got); err != nil {
			t.Fatalf("UpdateUser failed: %v", err)
		}
		got, _ = repo.GetUserByID(ctx, "user-001")
		if !got.IsOperator() {
			t.Error("profile update must not change the role")
		}

		if err := repo.SetUserRole(ctx, "user-001", "root"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for unknown role, got %v", err)
		}
		if err := repo.SetUserRole(ctx, "ghost", domain.RoleUser); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SaveAndGetAssessment", func(t *testing.T) {
		a := testAssessment("a-001", 45, domain.RiskModerate, time.Now().UTC())
		if err := repo.SaveAssessment(ctx, "user-001", a); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}

		got, err := repo.GetAssessment(ctx, "user-001", "a-001")
		if err != nil {
			t.Fatalf("GetAssessment failed: %v", err)
		}
		if got.UserID != "user-001" || got.RiskScore != 45 || got.RiskLevel != domain.RiskModerate {
			t.Errorf("unexpected assessment: %+v", got)
		}
		if got.Params.Oldpeak != 1.0 || got.Params.STSlope != domain.STSlopeFlat {
			t.Errorf("parameters not round-tripped: %+v", got.Params)
		}
		if len(got.Factors) != 2 || len(got.Screenings) != 1 {
			t.Errorf("factors or screenings lost: %v %v", got.Factors, got.Screenings)
		}
		if got.Metadata.TraceID != "trace-a-001" {
			t.Errorf("metadata lost: %+v", got.Metadata)
		}
	})

	t.Run("OwnerIsolation", func(t *testing.T) {
		if _, err := repo.GetAssessment(ctx, "user-002", "a-001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for another owner, got %v", err)
		}
		if err := repo.DeleteAssessment(ctx, "user-002", "a-001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting another owner's record, got %v", err)
		}
		if _, err := repo.GetAssessment(ctx, "", "a-001"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput without owner, got %v", err)
		}
	})

	t.Run("UpdatePending", func(t *testing.T) {
		p := &domain.Assessment{
			ID:        "a-pending",
			Status:    domain.StatusPending,
			Params:    testAssessment("x", 0, "", time.Now()).Params,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.SaveAssessment(ctx, "user-003", p); err != nil {
			t.Fatalf("SaveAssessment failed: %v", err)
		}

		got, _ := repo.GetAssessment(ctx, "user-003", "a-pending")
		if got.Status != domain.StatusPending || len(got.Factors) != 0 {
			t.Errorf("unexpected pending record: %+v", got)
		}

		p.ApplyResult(domain.RiskResult{RiskScore: 70, RiskLevel: domain.RiskHigh, Factors: []string{"Male sex"}})
		if err := repo.UpdateAssessment(ctx, "user-003", p); err != nil {
			t.Fatalf("UpdateAssessment failed: %v", err)
		}

		got, _ = repo.GetAssessment(ctx, "user-003", "a-pending")
		if got.Status != domain.StatusScored || got.RiskScore != 70 {
			t.Errorf("update not applied: %+v", got)
		}
	})

	t.Run("DuplicateAssessment", func(t *testing.T) {
		a := testAssessment("a-001", 10, domain.RiskLow, time.Now().UTC())
		if err := repo.SaveAssessment(ctx, "user-001", a); !errors.Is(err, ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})
}

func TestListAssessments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []struct {
		id    string
		score int
		level domain.RiskLevel
		at    time.Time
	}{
		{"a1", 10, domain.RiskLow, base},
		{"a2", 45, domain.RiskModerate, base.Add(time.Hour)},
		{"a3", 75, domain.RiskHigh, base.Add(2 * time.Hour)},
		{"a4", 20, domain.RiskLow, base.Add(3 * time.Hour)},
	}
	for _, s := range seed {
		if err := repo.SaveAssessment(ctx, "user-001", testAssessment(s.id, s.score, s.level, s.at)); err != nil {
			t.Fatal(err)
		}
	}
	repo.SaveAssessment(ctx, "user-002", testAssessment("other", 90, domain.RiskHigh, base))

	t.Run("NewestFirst", func(t *testing.T) {
		list, err := repo.ListAssessments(ctx, "user-001", domain.AssessmentFilter{})
		if err != nil {
			t.Fatalf("ListAssessments failed: %v", err)
		}
		var ids []string
		for _, a := range list {
			ids = append(ids, a.ID)
		}
		if strings.Join(ids, ",") != "a4,a3,a2,a1" {
			t.Errorf("unexpected order: %v", ids)
		}
	})

	t.Run("LevelFilter", func(t *testing.T) {
		list, _ := repo.ListAssessments(ctx, "user-001", domain.AssessmentFilter{Level: domain.RiskLow})
		if len(list) != 2 {
			t.Errorf("expected 2 Low assessments, got %d", len(list))
		}
		for _, a := range list {
			if a.RiskLevel != domain.RiskLow {
				t.Errorf("filter leaked %s", a.RiskLevel)
			}
		}
	})

	t.Run("Limit", func(t *testing.T) {
		list, _ := repo.ListAssessments(ctx, "user-001", domain.AssessmentFilter{Limit: 2})
		if len(list) != 2 || list[0].ID != "a4" {
			t.Errorf("unexpected limited list: %d", len(list))
		}
	})

	t.Run("Empty", func(t *testing.T) {
		list, err := repo.ListAssessments(ctx, "nobody", domain.AssessmentFilter{})
		if err != nil || list == nil || len(list) != 0 {
			t.Errorf("expected empty non-nil list, got %v %v", list, err)
		}
	})

	t.Run("CountSince", func(t *testing.T) {
		n, err := repo.CountAssessmentsSince(ctx, "user-001", base.Add(90*time.Minute))
		if err != nil {
			t.Fatalf("CountAssessmentsSince failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2, got %d", n)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		if err := repo.DeleteAssessment(ctx, "user-001", "a1"); err != nil {
			t.Fatalf("DeleteAssessment failed: %v", err)
		}
		if _, err := repo.GetAssessment(ctx, "user-001", "a1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected deleted, got %v", err)
		}
	})
}

func TestCorruptAssessmentColumns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	db := repo.(*SQLRepository).db

	for _, column := range []string{"factors", "screenings", "metadata"} {
		t.Run(column, func(t *testing.T) {
			id := "corrupt-" + column
			if err := repo.SaveAssessment(ctx, "user-001", testAssessment(id, 40, domain.RiskModerate, time.Now())); err != nil {
				t.Fatalf("SaveAssessment failed: %v", err)
			}
			// column comes from the fixed list above.
			if _, err := db.ExecContext(ctx, "UPDATE assessments SET "+column+" = ? WHERE id = ?", "{not json", id); err != nil {
				t.Fatalf("failed to corrupt row: %v", err)
			}

			_, err := repo.GetAssessment(ctx, "user-001", id)
			if err == nil || !strings.Contains(err.Error(), "parse "+column) {
				t.Errorf("expected %s decode error, got %v", column, err)
			}

			_, err = repo.ListAssessments(ctx, "user-001", domain.AssessmentFilter{})
			if err == nil {
				t.Error("expected ListAssessments to surface the decode error")
			}

			repo.DeleteAssessment(ctx, "user-001", id)
		})
	}
}

func TestRuleConfigs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	zero, one := 0.0, 1.0
	rule := &domain.RuleConfig{
		ID:          "bp-crisis",
		Name:        "BP",
		Description: "crisis range",
		Version:     "1.0.0",
		Expression:  "resting_bp >= 180",
		Bands: []domain.RuleBand{
			{LowerLimit: &zero, UpperLimit: &one, SubRuleRef: domain.RuleOutcomePass, Reason: "ok"},
			{LowerLimit: &one, SubRuleRef: domain.RuleOutcomeFail, Reason: "crisis"},
		},
		Enabled: true,
	}

	if err := repo.SaveRuleConfig(ctx, rule); err != nil {
		t.Fatalf("SaveRuleConfig failed: %v", err)
	}

	got, err := repo.GetRuleConfig(ctx, "bp-crisis")
	if err != nil {
		t.Fatalf("GetRuleConfig failed: %v", err)
	}
	if got.Expression != rule.Expression || len(got.Bands) != 2 || got.Bands[1].UpperLimit != nil {
		t.Errorf("rule not round-tripped: %+v", got)
	}

	rule.Enabled = false
	rule.Version = "1.1.0"
	if err := repo.SaveRuleConfig(ctx, rule); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	got, _ = repo.GetRuleConfig(ctx, "bp-crisis")
	if got.Enabled || got.Version != "1.1.0" {
		t.Errorf("upsert not applied: %+v", got)
	}

	repo.SaveRuleConfig(ctx, &domain.RuleConfig{ID: "a-rule", Name: "A", Version: "1", Expression: "age > 1", Enabled: true})

	list, err := repo.ListRuleConfigs(ctx)
	if err != nil {
		t.Fatalf("ListRuleConfigs failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a-rule" {
		t.Errorf("unexpected rule list: %v", list)
	}

	if _, err := repo.GetRuleConfig(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestContactMessages(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	msg := &domain.ContactMessage{ID: "m-1", Name: "Ann", Email: "ann@example.com", Subject: "Hi", Message: "Hello"}
	if err := repo.SaveContactMessage(ctx, msg); err != nil {
		t.Fatalf("SaveContactMessage failed: %v", err)
	}
	if msg.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be stamped")
	}

	if err := repo.SaveContactMessage(ctx, &domain.ContactMessage{ID: "m-2"}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := New(domain.RepositoryConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	if got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("unexpected rebind: %s", got)
	}

	lite := &SQLRepository{driver: "sqlite"}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite query must be unchanged, got %s", got)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{PostgresUser: "hc", PostgresPassword: "p w'd"})
	for _, want := range []string{"host=localhost", "port=5432", "dbname=heartcare", "sslmode=disable", "user=hc", `password='p w\'d'`} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
}
