package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// StudentSessionStartKey returns the cache key for a student's assessment session start
func (r *CacheKeyStruct) StudentSessionStartKey(assignmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assignment:%s:session_start", studentID, assignmentID)
}

// StudentAnswersKey returns the cache key for a student's autosaved answers
func (r *CacheKeyStruct) StudentAnswersKey(assignmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assignment:%s:answers", studentID, assignmentID)
}

// StudentViolationsKey returns the cache key for a student's violation counter
func (r *CacheKeyStruct) StudentViolationsKey(assignmentID string, studentID int) string {
	return fmt.Sprintf("student:%d:assignment:%s:violations", studentID, assignmentID)
}

// AssignmentPayloadKey returns the cache key for an assignment's student payload
func (r *CacheKeyStruct) AssignmentPayloadKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:payload", assignmentID)
}

// AssignmentDurationKey returns the cache key for an assignment's duration
func (r *CacheKeyStruct) AssignmentDurationKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:duration", assignmentID)
}

// AssignmentAnswerKey returns the cache key for an assignment's answer key
func (r *CacheKeyStruct) AssignmentAnswerKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:key", assignmentID)
}

// AssignmentMarksKey returns the cache key for an assignment's per-question marks
func (r *CacheKeyStruct) AssignmentMarksKey(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:marks", assignmentID)
}

// AssignmentMonitorChannel returns the Redis PubSub channel name for an assignment monitor
func (r *CacheKeyStruct) AssignmentMonitorChannel(assignmentID string) string {
	return fmt.Sprintf("assignment:%s:monitor", assignmentID)
}

var CacheKey = NewCacheKeyStruct()
