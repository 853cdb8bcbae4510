package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/heartcare-ai/heartcare/internal/domain"
	"github.com/heartcare-ai/heartcare/internal/scoring"
)

const sampleCSV = `Age,Sex,ChestPainType,RestingBP,Cholesterol,FastingBS,RestingECG,MaxHR,ExerciseAngina,Oldpeak,ST_Slope,HeartDisease
40,M,ATA,140,289,0,Normal,172,N,0,Up,0
49,F,NAP,160,180,0,Normal,156,N,1,Flat,1
65,M,ASY,185,310,1,LVH,100,Y,3,Down,1
37,M,ATA,130,283,0,ST,98,N,0,Up,0
oops,M,ATA,130,283,0,ST,98,N,0,Up,0
`

func TestReadDataset(t *testing.T) {
	t.Run("ParsesRows", func(t *testing.T) {
		records, skipped, err := readDataset(strings.NewReader(sampleCSV), 0)
		if err != nil {
			t.Fatalf("readDataset failed: %v", err)
		}
		if len(records) != 4 || skipped != 1 {
			t.Fatalf("expected 4 records and 1 skipped, got %d and %d", len(records), skipped)
		}

		r := records[2]
		if r.Line != 4 || !r.HeartDisease {
			t.Errorf("unexpected record metadata: %+v", r)
		}
		want := domain.HealthParameters{
			Age: 65, Sex: "M", ChestPainType: "ASY", RestingBP: 185, Cholesterol: 310,
			FastingBS: "1", RestingECG: "LVH", MaxHR: 100, ExerciseAngina: "Y", Oldpeak: 3, STSlope: "Down",
		}
		if r.Params != want {
			t.Errorf("unexpected params:\n got %+v\nwant %+v", r.Params, want)
		}
	})

	t.Run("Limit", func(t *testing.T) {
		records, _, err := readDataset(strings.NewReader(sampleCSV), 2)
		if err != nil {
			t.Fatalf("readDataset failed: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 records, got %d", len(records))
		}
	})

	t.Run("MissingColumn", func(t *testing.T) {
		_, _, err := readDataset(strings.NewReader("Age,Sex\n40,M\n"), 0)
		if err == nil {
			t.Error("expected error for missing columns")
		}
	})
}

func TestConfusion(t *testing.T) {
	c := &Confusion{}
	c.add(true, true)
	c.add(true, true)
	c.add(true, false)
	c.add(false, true)
	c.add(false, false)

	approx := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > 1e-9 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	approx("precision", c.Precision(), 2.0/3.0)
	approx("recall", c.Recall(), 2.0/3.0)
	approx("f1", c.F1(), 2.0/3.0)
	approx("accuracy", c.Accuracy(), 3.0/5.0)

	empty := &Confusion{}
	if empty.Precision() != 0 || empty.F1() != 0 || empty.Accuracy() != 0 {
		t.Error("expected zero metrics for an empty matrix")
	}
}

func TestThreshold(t *testing.T) {
	if _, err := parseThreshold("extreme"); err == nil {
		t.Error("expected error for unknown threshold")
	}

	high, _ := parseThreshold("HIGH")
	moderate, _ := parseThreshold("moderate")

	if predicts(domain.RiskModerate, high) {
		t.Error("Moderate must not count as positive at the high threshold")
	}
	if !predicts(domain.RiskModerate, moderate) || !predicts(domain.RiskHigh, moderate) {
		t.Error("Moderate and High must count as positive at the moderate threshold")
	}
	if predicts(domain.RiskLow, moderate) {
		t.Error("Low is never positive")
	}
}

func TestEvaluate(t *testing.T) {
	records, _, err := readDataset(strings.NewReader(sampleCSV), 0)
	if err != nil {
		t.Fatalf("readDataset failed: %v", err)
	}

	t.Run("Local", func(t *testing.T) {
		local := func(_ context.Context, p domain.HealthParameters) (domain.RiskResult, error) {
			return scoring.Score(p), nil
		}
		c := evaluate(context.Background(), records, local, domain.RiskHigh, 3, nil)
		if c.Processed != 4 || c.total() != 4 || c.Errors != 0 {
			t.Fatalf("unexpected counts: %+v", c)
		}
		if c.TruePositives < 1 {
			t.Errorf("expected the high risk row to be a true positive: %+v", c)
		}
	})

	t.Run("Errors", func(t *testing.T) {
		failing := func(context.Context, domain.HealthParameters) (domain.RiskResult, error) {
			return domain.RiskResult{}, errors.New("boom")
		}
		c := evaluate(context.Background(), records, failing, domain.RiskHigh, 2, nil)
		if c.Errors != 4 || c.total() != 0 {
			t.Errorf("expected 4 errors and no predictions, got %+v", c)
		}
	})

	t.Run("Remote", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/health":
				w.WriteHeader(http.StatusOK)
			case "/score":
				var p domain.HealthParameters
				if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(scoring.Score(p))
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()

		client := newScoreClient(srv.URL)
		if err := client.checkHealth(context.Background()); err != nil {
			t.Fatalf("checkHealth failed: %v", err)
		}

		c := evaluate(context.Background(), records, client.score, domain.RiskHigh, 2, nil)
		if c.Errors != 0 || c.total() != 4 {
			t.Errorf("unexpected counts: %+v", c)
		}

		res, err := client.score(context.Background(), records[2].Params)
		if err != nil || res.RiskLevel != domain.RiskHigh {
			t.Errorf("expected High from remote scorer, got %+v, %v", res, err)
		}
	})
}
