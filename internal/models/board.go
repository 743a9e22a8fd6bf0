package models

// Board 固定的话题板块
type Board string

const (
	BoardMath    Board = "Math"
	BoardScience Board = "Science"
	BoardCoding  Board = "Coding"
	BoardWriting Board = "Writing"
	BoardExams   Board = "Exams"
)

type BoardInfo struct {
	Name        Board  `json:"name"`
	Description string `json:"description"`
	PostCount   int64  `json:"postCount"`
}

var Boards = []BoardInfo{
	{Name: BoardMath, Description: "Algebra, calculus, geometry, and all things mathematics"},
	{Name: BoardScience, Description: "Physics, chemistry, biology, and scientific inquiry"},
	{Name: BoardCoding, Description: "Programming, debugging, algorithms, and software development"},
	{Name: BoardWriting, Description: "Essays, creative writing, grammar, and composition help"},
	{Name: BoardExams, Description: "Test preparation, study strategies, and exam tips"},
}

func (b Board) Valid() bool {
	for _, info := range Boards {
		if info.Name == b {
			return true
		}
	}
	return false
}
