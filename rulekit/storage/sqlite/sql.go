package sqlite

import "github.com/rulekit/rulekit/rulekit/storage"

const ddlBase = `
CREATE TABLE IF NOT EXISTS meta (
  key   TEXT PRIMARY KEY,
  value TEXT
);

CREATE TABLE IF NOT EXISTS rules (
  seq          INTEGER PRIMARY KEY AUTOINCREMENT,
  id           TEXT    NOT NULL UNIQUE,
  name         TEXT    NOT NULL DEFAULT '',
  rule_string  TEXT    NOT NULL,
  ast_json     TEXT    NOT NULL,
  sources_json TEXT    NOT NULL DEFAULT '[]',
  created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rules_rule_string ON rules(rule_string);
CREATE INDEX IF NOT EXISTS idx_rules_name        ON rules(name, seq);
`

var SQLTemplates = storage.SQL{
	MetaTableExists: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'meta'",

	GetMeta: "SELECT value FROM meta WHERE key = ?1",
	SetMeta: "INSERT INTO meta(key,value) VALUES(?1,?2) ON CONFLICT(key) DO UPDATE SET value=excluded.value",

	InsertRule: `INSERT INTO rules(id, name, rule_string, ast_json, sources_json, created_at)
		VALUES(?1, ?2, ?3, ?4, ?5, ?6)
		RETURNING seq`,
	GetRuleByID:      "SELECT " + storage.RuleColumns + " FROM rules WHERE id = ?1",
	FindRuleByString: "SELECT " + storage.RuleColumns + " FROM rules WHERE rule_string = ?1 ORDER BY seq LIMIT 1",
	DeleteRuleByID:   "DELETE FROM rules WHERE id = ?1",
	CountRules:       "SELECT COUNT(*) FROM rules",

	ListRulesBase: "SELECT " + storage.RuleColumns + " FROM rules",
}
