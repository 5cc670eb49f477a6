package models

type SafetyTip struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Body     string `json:"body" yaml:"body"`
	Category string `json:"category" yaml:"category"`
}

type TipCategory struct {
	Name string      `json:"name"`
	Tips []SafetyTip `json:"tips"`
}
