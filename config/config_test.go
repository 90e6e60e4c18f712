package config

import "testing"

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", User: "harvest", Password: "secret", DBName: "harvest"}
	got := p.DSN()
	want := "postgres://harvest:secret@db:5432/harvest?sslmode=disable"
	if got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}

	p.URL = "postgres://override"
	if p.DSN() != "postgres://override" {
		t.Fatalf("explicit url must win, got %q", p.DSN())
	}
}

func TestPostgresValidate(t *testing.T) {
	if err := (PostgresConfig{}).Validate(); err == nil {
		t.Fatal("empty config must fail validation")
	}
	if err := (PostgresConfig{Host: "db"}).Validate(); err == nil {
		t.Fatal("missing dbname must fail validation")
	}
	if err := (PostgresConfig{URL: "postgres://x"}).Validate(); err != nil {
		t.Fatalf("url-only config must validate, got %v", err)
	}
	if err := (PostgresConfig{Host: "db", DBName: "harvest"}).Validate(); err != nil {
		t.Fatalf("host+dbname must validate, got %v", err)
	}
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: "6379"}
	if r.Addr() != "cache:6379" {
		t.Fatalf("Addr() = %q", r.Addr())
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("valid redis config rejected: %v", err)
	}
	if err := (RedisConfig{Host: "cache"}).Validate(); err == nil {
		t.Fatal("missing port must fail validation")
	}
}
