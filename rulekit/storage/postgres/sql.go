package postgres

import "github.com/rulekit/rulekit/rulekit/storage"

// JSONB columns are cast back to text so both backends scan into strings.
const selectRule = "SELECT seq, id, name, rule_string, ast_json::text, sources_json::text, created_at FROM rules"

// FindRuleByString filters on md5(rule_string) so the planner can use the
// expression index; the plain comparison settles hash collisions.
var SQLTemplates = storage.SQL{
	MetaTableExists: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = 'meta'",

	GetMeta: "SELECT value FROM meta WHERE key = $1",
	SetMeta: "INSERT INTO meta(key,value) VALUES($1,$2) ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value",

	InsertRule: `INSERT INTO rules(id, name, rule_string, ast_json, sources_json, created_at)
	        VALUES($1, $2, $3, $4::jsonb, $5::jsonb, $6)
	        RETURNING seq`,
	GetRuleByID:      selectRule + " WHERE id = $1",
	FindRuleByString: selectRule + " WHERE md5(rule_string) = md5($1::text) AND rule_string = $1 ORDER BY seq LIMIT 1",
	DeleteRuleByID:   "DELETE FROM rules WHERE id = $1",
	CountRules:       "SELECT COUNT(*) FROM rules",

	ListRulesBase: selectRule,
}
