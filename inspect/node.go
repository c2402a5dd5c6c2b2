package inspect

// Node is one component in the inspection tree.
type Node struct {
	Type     string         `json:"type"`
	ID       string         `json:"id,omitempty"`
	Bounds   Bounds         `json:"bounds"`
	State    map[string]any `json:"state,omitempty"`
	Styles   *StyleInfo     `json:"styles,omitempty"`
	Children []*Node        `json:"children,omitempty"`
	// Content is the text shown, without styling.
	Content string `json:"content,omitempty"`
}

type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// StyleInfo is the part of a lipgloss style worth reporting.
type StyleInfo struct {
	Foreground    string   `json:"foreground,omitempty"`
	Background    string   `json:"background,omitempty"`
	Bold          bool     `json:"bold,omitempty"`
	Italic        bool     `json:"italic,omitempty"`
	Underline     bool     `json:"underline,omitempty"`
	Faint         bool     `json:"faint,omitempty"`
	Border        bool     `json:"border,omitempty"`
	AppliedStyles []string `json:"applied_styles,omitempty"`
}

func NewNode(nodeType string) *Node {
	return &Node{Type: nodeType, State: make(map[string]any)}
}

func (n *Node) WithID(id string) *Node {
	n.ID = id
	return n
}

func (n *Node) WithBounds(x, y, width, height int) *Node {
	n.Bounds = Bounds{X: x, Y: y, Width: width, Height: height}
	return n
}

func (n *Node) WithState(key string, value any) *Node {
	if n.State == nil {
		n.State = make(map[string]any)
	}
	n.State[key] = value
	return n
}

func (n *Node) WithStyles(styles *StyleInfo) *Node {
	n.Styles = styles
	return n
}

func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return n
}

func (n *Node) WithContent(content string) *Node {
	n.Content = content
	return n
}

// Find returns the first node of the given type, depth first.
func (n *Node) Find(nodeType string) *Node {
	if n.Type == nodeType {
		return n
	}
	for _, c := range n.Children {
		if found := c.Find(nodeType); found != nil {
			return found
		}
	}
	return nil
}
