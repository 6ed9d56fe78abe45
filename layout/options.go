package layout

// FontResource 描述一种可加载的字体：Family 为模板中引用的字体名，Src 为字体文件来源。
type FontResource struct {
	Family string `json:"family"`
	Src    string `json:"src,omitempty"`
	Style  string `json:"style,omitempty"` // regular | bold | italic ...
}

// TextLine 是排版后的一行。宽高单位与调用 LayoutLines 时一致。
type TextLine struct {
	Content   string  `json:"content"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	GapBefore float64 `json:"gapBefore,omitempty"`
}

// Typesetter 负责根据字体与宽度约束将文本拆成可绘制的行。
// width <= 0 表示不限宽；超宽的单词独占一行，不在词内拆分。
type Typesetter interface {
	LayoutLines(content string, width float64, font FontResource, fontSize, lineHeight float64) ([]TextLine, error)
}
