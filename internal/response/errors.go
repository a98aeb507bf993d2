package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"
	ErrActionForbidden ErrCode = "ACTION_FORBIDDEN"

	// ─── Assessment-specific ───────────────────────────────────────────
	ErrAssignmentNotAvailable ErrCode = "ASSIGNMENT_NOT_AVAILABLE"
	ErrInvalidEntryToken      ErrCode = "INVALID_ENTRY_TOKEN"
	ErrAssignmentNotPublished ErrCode = "ASSIGNMENT_NOT_PUBLISHED"
	ErrNotAssignmentAuthor    ErrCode = "NOT_ASSIGNMENT_AUTHOR"
	ErrNoQuestions            ErrCode = "NO_QUESTIONS"
	ErrAssignmentNotDraft     ErrCode = "ASSIGNMENT_NOT_DRAFT"
	ErrAlreadySubmitted       ErrCode = "ALREADY_SUBMITTED"
	ErrSubmissionFailed       ErrCode = "SUBMISSION_FAILED"
	ErrSessionNotFound        ErrCode = "SESSION_NOT_FOUND"
	ErrInvalidStage           ErrCode = "INVALID_STAGE"
	ErrAnswerNotGradable      ErrCode = "ANSWER_NOT_GRADABLE"
	ErrMarksOutOfRange        ErrCode = "MARKS_OUT_OF_RANGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email/NIS atau kata sandi salah."
	case ErrSessionActive:
		return "Anda sudah login di perangkat lain."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrTeacherAccessOnly:
		return "Sumber daya ini terbatas untuk guru."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."
	case ErrActionForbidden:
		return "Tindakan ini tidak diperbolehkan."

	// ─── Assessment-specific ───────────────────────────────────────────
	case ErrAssignmentNotAvailable:
		return "Asesmen ini saat ini tidak tersedia."
	case ErrInvalidEntryToken:
		return "Token masuk asesmen tidak valid."
	case ErrAssignmentNotPublished:
		return "Asesmen ini belum dipublikasikan."
	case ErrNotAssignmentAuthor:
		return "Anda bukan pembuat asesmen ini."
	case ErrNoQuestions:
		return "Asesmen ini tidak memiliki pertanyaan."
	case ErrAssignmentNotDraft:
		return "Asesmen ini tidak dalam status DRAFT."
	case ErrAlreadySubmitted:
		return "Jawaban Anda sudah dikumpulkan."
	case ErrSubmissionFailed:
		return "Pengumpulan jawaban gagal. Silakan coba lagi."
	case ErrSessionNotFound:
		return "Sesi pengerjaan tidak ditemukan."
	case ErrInvalidStage:
		return "Tindakan ini tidak valid pada tahap sesi saat ini."
	case ErrAnswerNotGradable:
		return "Jawaban ini tidak dapat dinilai secara manual."
	case ErrMarksOutOfRange:
		return "Nilai berada di luar rentang yang diperbolehkan."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
