// Package registration orchestrates inbound partner action requests and SSO
// resolution: creating, updating and cancelling a learner's registration
// together with its completion profile.
package registration

import (
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/completion"
	"github.com/ExtensionEngineArchive/ed2go-edx-platform/core/user"
)

// ActionResult is the partner-facing outcome of one action request.
type ActionResult struct {
	Code    int
	Message string
}

type Service struct {
	partner    core.PartnerClient
	completion *completion.Service
	users      *user.Service
	logger     core.Logger
}

func NewService(
	partner core.PartnerClient,
	completionSvc *completion.Service,
	users *user.Service,
	logger core.Logger,
) *Service {
	return &Service{
		partner:    partner,
		completion: completionSvc,
		users:      users,
		logger:     logger,
	}
}

// HandleAction dispatches an inbound partner action request. Every branch
// answers the partner with a small fixed set of status codes; unexpected
// failures are translated into rejection status pushes, never stack traces.
func (svc *Service) HandleAction(action, regKey string) ActionResult {
	switch action {
	case core.ActionNewRegistration:
		return svc.newRegistration(regKey)
	case core.ActionUpdateRegistration:
		return svc.updateRegistration(regKey)
	case core.ActionCancelRegistration:
		return svc.cancelRegistration(regKey)
	default:
		return ActionResult{http.StatusBadRequest, fmt.Sprintf("Action %s not supported.", action)}
	}
}

func (svc *Service) newRegistration(regKey string) ActionResult {
	regData, err := svc.partner.Registration(regKey)
	if err != nil {
		svc.logger.Error("registration: fetching registration data", err)
		svc.pushStatus(regKey, "", core.StatusRegistrationRejected, err.Error())
		return ActionResult{http.StatusBadRequest, "Could not fetch registration data."}
	}

	usr, err := svc.getOrCreateUser(regData)
	if err != nil {
		svc.logger.Error("registration: resolving user", err)
		svc.pushStatus(regKey, regData.ReferenceID, core.StatusRegistrationRejected, err.Error())
		return ActionResult{http.StatusBadRequest, "Could not resolve user."}
	}

	_, err = svc.completion.Create(usr.ID, regData.Course.Code, regKey, regData.ReferenceID)
	switch {
	case errors.Is(err, completion.ErrProfileExists):
		svc.pushStatus(regKey, regData.ReferenceID, core.StatusRegistrationRejected, "")
		return ActionResult{http.StatusBadRequest, "Registration key already used."}
	case err != nil:
		svc.logger.Error("registration: creating completion profile", err)
		svc.pushStatus(regKey, regData.ReferenceID, core.StatusRegistrationRejected, err.Error())
		return ActionResult{http.StatusBadRequest, "Could not create completion profile."}
	}

	svc.pushStatus(regKey, regData.ReferenceID, core.StatusRegistrationProcessed, "")
	return ActionResult{
		http.StatusCreated,
		fmt.Sprintf("User %s enrolled in %s.", usr.Username, regData.Course.Code),
	}
}

func (svc *Service) updateRegistration(regKey string) ActionResult {
	regData, err := svc.partner.Registration(regKey)
	if err != nil {
		svc.logger.Error("registration: fetching registration data", err)
		svc.pushStatus(regKey, "", core.StatusUpdateRejected, err.Error())
		return ActionResult{http.StatusBadRequest, "Could not fetch registration data."}
	}

	if err = svc.applyUpdate(regKey, regData); err != nil {
		svc.logger.Error("registration: updating registration", err)
		svc.pushStatus(regKey, regData.ReferenceID, core.StatusUpdateRejected, err.Error())
		return ActionResult{http.StatusBadRequest, "Could not update registration."}
	}

	svc.pushStatus(regKey, regData.ReferenceID, core.StatusUpdateProcessed, "")
	return ActionResult{http.StatusOK, "Registration updated."}
}

func (svc *Service) applyUpdate(regKey string, regData core.RegistrationData) error {
	usr, err := svc.users.GetByEmail(regData.Student.Email)
	if err != nil {
		return err
	}
	_, err = svc.users.UpdateProfile(usr.ID, user.UpdateUser{
		Name:        regData.Student.FirstName + " " + regData.Student.LastName,
		Country:     regData.Student.Country,
		YearOfBirth: birthYear(regData.Student.Birthdate),
		ReturnURL:   regData.ReturnURL,
		StudentKey:  regData.Student.StudentKey,
	})
	if err != nil {
		return err
	}
	return svc.completion.UpdateReference(regKey, regData.ReferenceID)
}

func (svc *Service) cancelRegistration(regKey string) ActionResult {
	profile, err := svc.completion.GetByRegistrationKey(regKey)
	if err != nil {
		if errors.Is(err, completion.ErrProfileNotFound) {
			svc.pushStatus(regKey, "", core.StatusCancellationRejected, "")
			return ActionResult{http.StatusNotFound, "Registration not found."}
		}
		svc.logger.Error("registration: looking up completion profile", err)
		svc.pushStatus(regKey, "", core.StatusCancellationRejected, err.Error())
		return ActionResult{http.StatusBadRequest, "Could not cancel registration."}
	}

	if err = svc.completion.Deactivate(regKey); err != nil {
		svc.logger.Error("registration: deactivating completion profile", err)
		svc.pushStatus(regKey, profile.ReferenceID, core.StatusCancellationRejected, err.Error())
		return ActionResult{http.StatusBadRequest, "Could not cancel registration."}
	}

	svc.pushStatus(regKey, profile.ReferenceID, core.StatusCancellationProcessed, "")
	return ActionResult{http.StatusOK, "Registration cancelled."}
}

// ResolveSSO resolves the registration key into a logged-in-able user and
// their completion profile, creating both on first contact. Cancelled
// profiles are reactivated, which re-enrolls the user.
func (svc *Service) ResolveSSO(regKey string) (user.User, completion.CompletionProfile, error) {
	profile, err := svc.completion.GetByRegistrationKey(regKey)
	if err == nil {
		if !profile.Active {
			if err = svc.completion.Activate(regKey); err != nil {
				return user.User{}, completion.CompletionProfile{}, err
			}
			profile.Active = true
		}
		usr, err := svc.users.GetByID(profile.UserID)
		return usr, profile, err
	}
	if !errors.Is(err, completion.ErrProfileNotFound) {
		return user.User{}, completion.CompletionProfile{}, err
	}

	regData, err := svc.partner.Registration(regKey)
	if err != nil {
		return user.User{}, completion.CompletionProfile{}, err
	}
	usr, err := svc.getOrCreateUser(regData)
	if err != nil {
		return user.User{}, completion.CompletionProfile{}, err
	}
	profile, err = svc.completion.Create(usr.ID, regData.Course.Code, regKey, regData.ReferenceID)
	if err != nil {
		return user.User{}, completion.CompletionProfile{}, err
	}
	return usr, profile, nil
}

func (svc *Service) getOrCreateUser(regData core.RegistrationData) (user.User, error) {
	usr, err := svc.users.GetByEmail(regData.Student.Email)
	if err == nil {
		return usr, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return user.User{}, err
	}

	username, err := svc.users.GenerateUsername(regData.Student.FirstName)
	if err != nil {
		return user.User{}, err
	}
	return svc.users.Create(user.NewUser{
		Username:    username,
		Email:       regData.Student.Email,
		Name:        regData.Student.FirstName + " " + regData.Student.LastName,
		Country:     regData.Student.Country,
		YearOfBirth: birthYear(regData.Student.Birthdate),
		ReturnURL:   regData.ReturnURL,
		StudentKey:  regData.Student.StudentKey,
	})
}

// pushStatus sends a registration status update to the partner.
// Fire-and-forget: a push failure is logged, never escalated to the caller.
func (svc *Service) pushStatus(regKey, referenceID, status, note string) {
	if err := svc.partner.UpdateRegistrationStatus(regKey, referenceID, status, note); err != nil {
		svc.logger.Error("registration: pushing status update", err, map[string]interface{}{
			"registration_key": regKey,
			"status":           status,
		})
	}
}

func birthYear(birthdate string) int {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, birthdate); err == nil {
			return t.Year()
		}
	}
	return 0
}
