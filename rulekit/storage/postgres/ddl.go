package postgres

const ddlBase = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE IF NOT EXISTS rules (
  seq          BIGSERIAL PRIMARY KEY,
  id           TEXT   NOT NULL UNIQUE,
  name         TEXT   NOT NULL DEFAULT '',
  rule_string  TEXT   NOT NULL,
  ast_json     JSONB  NOT NULL,
  sources_json JSONB  NOT NULL DEFAULT '[]'::jsonb,
  created_at   BIGINT NOT NULL
);
-- rule_string can outgrow a btree entry, so only its hash is indexed
DROP INDEX IF EXISTS idx_rules_rule_string;
CREATE INDEX IF NOT EXISTS idx_rules_rule_md5 ON rules(md5(rule_string));
CREATE INDEX IF NOT EXISTS idx_rules_name     ON rules(name, seq);
`
