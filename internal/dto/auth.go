package dto

// RegisterTeacherRequest payload for teacher sign-up.
type RegisterTeacherRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=8"`
}

// TeacherLoginRequest payload for teacher authentication.
type TeacherLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// JoinClassroomRequest payload for a student joining via classroom code.
type JoinClassroomRequest struct {
	Code string `json:"code" validate:"required,len=6"`
	Name string `json:"name" validate:"required,min=2,max=50"`
	PIN  string `json:"pin" validate:"required,len=4,numeric"`
}

// StudentLoginRequest payload for returning students.
type StudentLoginRequest struct {
	Code string `json:"code" validate:"required,len=6"`
	Name string `json:"name" validate:"required"`
	PIN  string `json:"pin" validate:"required,len=4,numeric"`
}
