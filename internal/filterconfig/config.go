package filterconfig

import "time"

// Config 필터 실행 설정 (YAML)
type Config struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Filter    Filter    `yaml:"filter" json:"filter"`
	Safeguard Safeguard `yaml:"safeguard" json:"safeguard"`
	Retry     Retry     `yaml:"retry" json:"retry"`
	Output    Output    `yaml:"output" json:"output"`
}

// Meta 메타 정보
type Meta struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Filter 필터 종류와 smoothing(λ)
type Filter struct {
	Kind               string    `yaml:"kind" json:"kind"`
	Smoothing          float64   `yaml:"smoothing" json:"smoothing"`
	SmoothingPerExpiry []float64 `yaml:"smoothing_per_expiry,omitempty" json:"smoothing_per_expiry,omitempty"` // 있으면 smoothing 무시
	SmoothingGrid      []float64 `yaml:"smoothing_grid,omitempty" json:"smoothing_grid,omitempty"`
}

// Safeguard 재정렬 재시도
type Safeguard struct {
	Enable         bool    `yaml:"enable" json:"enable"`
	MaxAttempts    int     `yaml:"max_attempts" json:"max_attempts"`
	MaxAdjustedPct float64 `yaml:"max_adjusted_pct" json:"max_adjusted_pct"`
	Seed           int64   `yaml:"seed" json:"seed"`
}

// Retry 만기 간 하한 위반 시 재시도 (expiry_forward 전용)
type Retry struct {
	Enable      bool   `yaml:"enable" json:"enable"`
	MaxAttempts int    `yaml:"max_attempts" json:"max_attempts"`
	Fallback    string `yaml:"fallback" json:"fallback"`
}

// Output 결과 표시 단위
type Output struct {
	StrikeUnit string `yaml:"strike_unit" json:"strike_unit"`
	PriceUnit  string `yaml:"price_unit" json:"price_unit"`
}

// Snapshot 실행 설정 스냅샷 (재현성용)
type Snapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}
