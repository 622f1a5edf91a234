package content

import "fmt"

// ParseError は個別ファイルのフロントマター不備や変換失敗を表す。
// 該当ファイルはスキップされ、コーパス全体の読み込みは継続する。
type ParseError struct {
	Path   string
	Reason string
}

// Error はerrorインターフェースを実装する。
func (e *ParseError) Error() string {
	return fmt.Sprintf("content parse error: %s: %s", e.Path, e.Reason)
}
